package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: gerações de IA
// em andamento para um chamador).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx
// encerrar. Ao adquirir, retorna uma função de release que deve ser chamada
// exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// SlotPools obtém um pool por chave, criado sob demanda com a capacidade
// dada (a capacidade vem do tier do chamador).
type SlotPools interface {
	Get(key string, capacity int) SlotPool
}
