package query

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"battlescope/internal/battle"
	"battlescope/internal/killmail"
	"battlescope/pkg/dto"
	"battlescope/pkg/sde"
)

// toListFilter converts the wire-level ListBattlesInput into battle.ListFilter,
// parsing the opaque cursor and optional time bounds.
func toListFilter(input *ListBattlesInput) (battle.ListFilter, error) {
	if err := validate.Struct(input); err != nil {
		return battle.ListFilter{}, fmt.Errorf("invalid filter: %w", err)
	}

	f := battle.ListFilter{Limit: input.Limit}

	if input.SecurityType != "" {
		st := sde.SecurityType(input.SecurityType)
		f.SecurityType = &st
	}
	if input.AllianceID != 0 {
		v := dto.U64(uint64(input.AllianceID))
		f.AllianceID = &v
	}
	if input.CorpID != 0 {
		v := dto.U64(uint64(input.CorpID))
		f.CorpID = &v
	}
	if input.CharacterID != 0 {
		v := dto.U64(uint64(input.CharacterID))
		f.CharacterID = &v
	}
	if input.SystemID != 0 {
		f.SystemID = &input.SystemID
	}
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return battle.ListFilter{}, fmt.Errorf("invalid since timestamp: %w", err)
		}
		f.Since = &t
	}
	if input.Until != "" {
		t, err := time.Parse(time.RFC3339, input.Until)
		if err != nil {
			return battle.ListFilter{}, fmt.Errorf("invalid until timestamp: %w", err)
		}
		f.Until = &t
	}
	if input.Cursor != "" {
		c, err := decodeCursor(input.Cursor)
		if err != nil {
			return battle.ListFilter{}, fmt.Errorf("invalid cursor: %w", err)
		}
		f.Cursor = &c
	}
	return f, nil
}

// encodeCursor/decodeCursor make killmail.Cursor opaque on the wire, per
// spec.md §3's "opaque cursor encoding the last tuple" requirement.
func encodeCursor(c killmail.Cursor) string {
	raw := fmt.Sprintf("%d:%s", c.StartTime.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (killmail.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return killmail.Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return killmail.Cursor{}, fmt.Errorf("malformed cursor")
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return killmail.Cursor{}, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	return killmail.Cursor{StartTime: time.Unix(0, nanos), ID: parts[1]}, nil
}
