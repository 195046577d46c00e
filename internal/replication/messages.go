// Package replication keeps combatant planning state consistent between the
// single authoritative holder and any number of observers that communicate
// only through asynchronous messages. Observers read through their own
// unconfirmed writes so the UI stays responsive before round-trips complete.
package replication

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MessageType string

const (
	// MsgSetStatePath asks the holder to apply one path-scoped update.
	MsgSetStatePath MessageType = "setStatePath"
	// MsgInitState asks the holder for a full authoritative snapshot.
	MsgInitState MessageType = "initState"
	// MsgStatePath is the holder's confirmation broadcast for an applied
	// update.
	MsgStatePath MessageType = "statePath"
	// MsgState carries a full snapshot back to the requesting observer.
	MsgState MessageType = "state"
	// MsgWriteFailed tells the origin its update was not persisted. The
	// origin keeps its optimistic value; there is no automatic retry.
	MsgWriteFailed MessageType = "writeFailed"
)

// Envelope is the single wire shape for every replication message.
type Envelope struct {
	Type     MessageType     `json:"type"`
	CombatID string          `json:"combatId"`
	Path     string          `json:"path,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Seq      uint64          `json:"seq,omitempty"`
	Origin   string          `json:"origin,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SetStatePath builds an update-request envelope.
func SetStatePath(combatID, combatantUUID, planPath string, value interface{}) (Envelope, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:     MsgSetStatePath,
		CombatID: combatID,
		Path:     JoinPath(combatantUUID, planPath),
		Value:    raw,
	}, nil
}

// JoinPath builds the combat-scoped dotted path for a plan field.
func JoinPath(combatantUUID, planPath string) string {
	return "combatants." + combatantUUID + "." + planPath
}

// SplitPath separates a combat-scoped path into the combatant UUID and the
// plan-relative remainder.
func SplitPath(path string) (combatantUUID, planPath string, err error) {
	rest, ok := strings.CutPrefix(path, "combatants.")
	if !ok {
		return "", "", fmt.Errorf("path %q does not address a combatant", path)
	}
	uuid, planPath, ok := strings.Cut(rest, ".")
	if !ok || uuid == "" || planPath == "" {
		return "", "", fmt.Errorf("path %q does not address a plan field", path)
	}
	return uuid, planPath, nil
}
