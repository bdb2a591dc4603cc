package events

import "time"

// CacheInvalidation é publicado no Redis após uma mutação bem-sucedida para
// que outras instâncias do cliente invalidem as mesmas views.
// Prefixes: cada item é a sequência de segmentos de uma CacheKey.
type CacheInvalidation struct {
	Origin   string     `json:"origin"`   // id da instância que publicou
	Mutation string     `json:"mutation"` // ex: "place-bet"
	Prefixes [][]string `json:"prefixes"`
	Ts       time.Time  `json:"ts"`
}
