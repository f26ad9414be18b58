package monitor

import "time"

type Status struct {
	SessionStore bool      `json:"session_store"`
	Backend      bool      `json:"backend"`
	StoreKind    string    `json:"store_kind"`
	LastCheck    time.Time `json:"last_check"`
}
