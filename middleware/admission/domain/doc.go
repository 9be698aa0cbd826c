// Package domain define contratos e tipos de domínio para o controle de
// admissão por tiers: tiers e suas quotas, chaves de janela, o contrato do
// window store compartilhado e o resultado de uma checagem de admissão.
//
// Este pacote não depende de net/http nem de implementações concretas
// (Redis, memória). A intenção é permitir testes de unidade puros e
// desacoplar as regras de quota dos detalhes de infraestrutura.
package domain
