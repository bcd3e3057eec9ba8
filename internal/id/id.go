package id

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewRunID identifies one batch run across logs, traces and the manifest.
func NewRunID() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return "run-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return u.String()
}
