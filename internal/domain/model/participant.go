// Package model contains domain models passed between layers.
package model

import "time"

// DefaultLangCode is assigned to participants that never chose a language.
const DefaultLangCode = "ru"

// Participant is a registered attendee.
type Participant struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	ChatID       string    `json:"chat_id,omitempty"`
	LangCode     string    `json:"lang_code,omitempty"`
	Enabled      bool      `json:"enabled"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
}

// Disable clears the profile but keeps the id and language known.
func (p *Participant) Disable() {
	lang := p.LangCode
	*p = Participant{ID: p.ID, LangCode: lang}
}
