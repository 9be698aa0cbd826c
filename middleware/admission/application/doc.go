// Package application contém os casos de uso do controle de admissão:
// a contagem em janela deslizante (Counter), a composição de limiters em
// uma única decisão (Chain) e o registro do custo real consumido após a
// operação (Recorder).
//
// Ele depende apenas do pacote domain e não conhece net/http.
package application
