package store

import (
	"strconv"
	"strings"
)

// Key identifica uma view em cache: família do recurso seguida de parâmetros
// opcionais, ex: [bets, pending]. Imutável após construída.
type Key struct {
	segments []string
}

// NewKey cria a chave para family com os parâmetros dados.
func NewKey(family string, params ...string) Key {
	seg := make([]string, 0, 1+len(params))
	seg = append(seg, family)
	seg = append(seg, params...)
	return Key{segments: seg}
}

// KeyOf reconstrói uma chave a partir de segmentos (ex: vindos do bus).
func KeyOf(segments []string) Key {
	return Key{segments: append([]string(nil), segments...)}
}

// Family retorna o primeiro segmento (recurso).
func (k Key) Family() string {
	if len(k.segments) == 0 {
		return ""
	}
	return k.segments[0]
}

// Segments retorna uma cópia dos segmentos.
func (k Key) Segments() []string { return append([]string(nil), k.segments...) }

func (k Key) Len() int { return len(k.segments) }

// HasPrefix informa se p é prefixo (segmento a segmento) de k.
func (k Key) HasPrefix(p Key) bool {
	if len(p.segments) > len(k.segments) {
		return false
	}
	for i, s := range p.segments {
		if k.segments[i] != s {
			return false
		}
	}
	return true
}

// Matches: duas chaves casam para invalidação se uma é prefixo da outra.
func (k Key) Matches(other Key) bool {
	return k.HasPrefix(other) || other.HasPrefix(k)
}

func (k Key) Equal(other Key) bool {
	return len(k.segments) == len(other.segments) && k.HasPrefix(other)
}

func (k Key) String() string { return strings.Join(k.segments, "/") }

// id é a chave interna do mapa: cada segmento prefixado pelo tamanho, para
// que segmentos contendo separadores não colidam
func (k Key) id() string {
	var b strings.Builder
	for _, seg := range k.segments {
		b.WriteString(strconv.Itoa(len(seg)))
		b.WriteByte(':')
		b.WriteString(seg)
	}
	return b.String()
}
