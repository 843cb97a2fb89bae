package wizard

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds every user-facing text the wizard emits. Communities
// can override any of them from a YAML file (e.g. to localize the
// questions) without rebuilding the bot.
type Prompts struct {
	Category    string `yaml:"category"`
	Title       string `yaml:"title"`
	Device      string `yaml:"device"`
	Version     string `yaml:"version"` // printf-style, receives the product name
	Config      string `yaml:"config"`
	Performance string `yaml:"performance"`
	Issues      string `yaml:"issues"`
	Extra       string `yaml:"extra"`
	Author      string `yaml:"author"`
	Media       string `yaml:"media"`
	Preview     string `yaml:"preview"`
	Cancelled   string `yaml:"cancelled"`
	NoTarget    string `yaml:"noTarget"`
	SendFailed  string `yaml:"sendFailed"` // printf-style, receives the fault detail
	Sent        string `yaml:"sent"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		Category:    "Pick what the test is for:",
		Title:       "Game title (text):",
		Device:      "Device (model / CPU / RAM), one line is fine:",
		Version:     "%s version (e.g. 7.1.3 / 5.3.3):",
		Config:      "Settings (resolution / renderer / driver / anything else). A list in one message works:",
		Performance: "FPS / performance (e.g. 30-60, where it drops):",
		Issues:      "Issues / bugs (if none, write 'no'):",
		Extra:       "Anything extra (optional). If nothing, write 'no':",
		Author:      "Test author (nick / link). For example @nickname:",
		Media:       "Now send screenshots and/or videos of the test.\nMultiple messages are fine. Press \"Done\" when finished.",
		Preview:     "Check the post preview:",
		Cancelled:   "Okay, cancelled. Send /start to begin again.",
		NoTarget:    "No target chat is configured.\nAdd the bot to the destination chat and send /set_target there (admin only).",
		SendFailed:  "Delivery failed: %s",
		Sent:        "Done, the report was delivered. Send /start to file another one.",
	}
}

// For returns the prompt for a phase. The version prompt embeds the
// product name of the chosen category.
func (p Prompts) For(phase Phase, category string) string {
	switch phase {
	case PhaseCategory:
		return p.Category
	case PhaseTitle:
		return p.Title
	case PhaseDevice:
		return p.Device
	case PhaseVersion:
		return fmt.Sprintf(p.Version, CategoryName(category))
	case PhaseConfig:
		return p.Config
	case PhasePerformance:
		return p.Performance
	case PhaseIssues:
		return p.Issues
	case PhaseExtra:
		return p.Extra
	case PhaseAuthor:
		return p.Author
	case PhaseMedia:
		return p.Media
	}
	return ""
}

// LoadPrompts overlays overrides from a YAML file onto the defaults.
// A missing or unparsable file is logged and the defaults are kept.
func LoadPrompts(path string, logger *slog.Logger) Prompts {
	p := DefaultPrompts()
	if path == "" {
		return p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("cannot read prompt file, using defaults", "path", path, "err", err)
		return p
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		logger.Warn("cannot parse prompt file, using defaults", "path", path, "err", err)
		return DefaultPrompts()
	}

	logger.Info("loaded prompt overrides", "path", path)
	return p
}
