package domain

import (
	"encoding/json"
	"fmt"
)

// Settings holds user preferences for the assistant UI and voice output.
// Each key is stored independently; defaults apply when a key is unset.
type Settings struct {
	Theme          string `json:"theme"`
	FontSize       string `json:"font_size"`
	AutoScroll     bool   `json:"auto_scroll"`
	SoundEffects   bool   `json:"sound_effects"`
	VoiceOutput    bool   `json:"voice_output"`
	ShowTimestamps bool   `json:"show_timestamps"`
}

// Settings keys as they appear in persistent storage and the HTTP API.
const (
	SettingTheme          = "theme"
	SettingFontSize       = "fontSize"
	SettingAutoScroll     = "autoScroll"
	SettingSoundEffects   = "soundEffects"
	SettingVoiceOutput    = "voiceOutput"
	SettingShowTimestamps = "showTimestamps"
)

// SettingKeys lists all known settings keys in a fixed order.
var SettingKeys = []string{
	SettingTheme,
	SettingFontSize,
	SettingAutoScroll,
	SettingSoundEffects,
	SettingVoiceOutput,
	SettingShowTimestamps,
}

var validThemes = map[string]bool{"light": true, "dark": true}

var validFontSizes = map[string]bool{"small": true, "medium": true, "large": true}

// DefaultSettings returns the defaults applied when a key is unset.
func DefaultSettings() Settings {
	return Settings{
		Theme:          "dark",
		FontSize:       "medium",
		AutoScroll:     true,
		SoundEffects:   false,
		VoiceOutput:    false,
		ShowTimestamps: true,
	}
}

// Apply sets one settings key from its raw JSON-encoded value, validating
// both the key and the value domain.
func (s *Settings) Apply(key string, raw json.RawMessage) error {
	switch key {
	case SettingTheme:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("theme: %w", err)
		}
		if !validThemes[v] {
			return fmt.Errorf("invalid theme %q", v)
		}
		s.Theme = v
	case SettingFontSize:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("fontSize: %w", err)
		}
		if !validFontSizes[v] {
			return fmt.Errorf("invalid font size %q", v)
		}
		s.FontSize = v
	case SettingAutoScroll, SettingSoundEffects, SettingVoiceOutput, SettingShowTimestamps:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case SettingAutoScroll:
			s.AutoScroll = v
		case SettingSoundEffects:
			s.SoundEffects = v
		case SettingVoiceOutput:
			s.VoiceOutput = v
		case SettingShowTimestamps:
			s.ShowTimestamps = v
		}
	default:
		return fmt.Errorf("unknown settings key %q", key)
	}
	return nil
}

// Value returns the JSON-encoded value of one settings key.
func (s Settings) Value(key string) (json.RawMessage, error) {
	var v any
	switch key {
	case SettingTheme:
		v = s.Theme
	case SettingFontSize:
		v = s.FontSize
	case SettingAutoScroll:
		v = s.AutoScroll
	case SettingSoundEffects:
		v = s.SoundEffects
	case SettingVoiceOutput:
		v = s.VoiceOutput
	case SettingShowTimestamps:
		v = s.ShowTimestamps
	default:
		return nil, fmt.Errorf("unknown settings key %q", key)
	}
	return json.Marshal(v)
}
