package topics

const (
	// Bets (Kafka)
	BetConfirmed = "bet_confirmed"

	// Invalidação de cache entre instâncias (Redis Pub/Sub)
	CacheInvalidation = "cache_invalidation"
)
