package entity

import "errors"

// sentinel errors shared by the fan service and its repositories
var (
	ErrFanNotFound   = errors.New("fan not found")
	ErrNotOwned      = errors.New("fan does not belong to artist")
	ErrInvalidMetric = errors.New("invalid platform metric")
)
