package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeLicensePurge = "license:purge:expired"
)

type PurgeExpiredPayload struct {
	RetentionDays int `json:"retention_days"`
}

func NewLicensePurgeTask(retentionDays int, opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(PurgeExpiredPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(1 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeLicensePurge, payloadBytes, allOpts...), nil
}
