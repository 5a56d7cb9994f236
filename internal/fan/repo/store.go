package repo

import "github.com/jmoiron/sqlx"

// Store bundles the fan-side repositories. It satisfies the fan service
// stores and the cohort data source.
type Store struct {
	*FanRepo
	*MetricRepo
	*EventRepo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{FanRepo: NewFanRepo(db), MetricRepo: NewMetricRepo(db), EventRepo: NewEventRepo(db)}
}
