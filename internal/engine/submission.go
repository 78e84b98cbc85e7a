package engine

import (
	"fmt"
	"strings"

	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/creative"
	"github.com/supercrema/adforge/pkg/errors"
	"github.com/supercrema/adforge/pkg/importer"
	"github.com/supercrema/adforge/pkg/platform/core"
)

// Batch is the YAML submission file a user hands to the CLI. Mode and
// network apply to every job in the batch; each job targets one
// destination with one format.
type Batch struct {
	Mode    string       `yaml:"mode"`
	Network string       `yaml:"network"`
	Jobs    []Submission `yaml:"jobs"`
}

// Submission describes one upload job.
type Submission struct {
	Destination struct {
		ID       string `yaml:"id"`
		StoreURL string `yaml:"store_url,omitempty"`
	} `yaml:"destination"`
	Format string              `yaml:"format"`
	Assets []importer.Location `yaml:"assets"`
	Texts  struct {
		PrimaryTexts []string `yaml:"primary_texts,omitempty"`
		Headlines    []string `yaml:"headlines,omitempty"`
		CTA          string   `yaml:"cta,omitempty"`
		StoreURL     string   `yaml:"store_url,omitempty"`
	} `yaml:"texts"`
	Naming struct {
		ExplicitName string `yaml:"explicit_name,omitempty"`
		GameName     string `yaml:"game_name,omitempty"`
		Prefix       string `yaml:"prefix,omitempty"`
		Suffix       string `yaml:"suffix,omitempty"`
	} `yaml:"naming"`
	// InheritDefaults defaults to true; set false to skip template
	// inheritance for this job.
	InheritDefaults *bool `yaml:"inherit_defaults,omitempty"`
	ForceRefresh    bool  `yaml:"force_refresh,omitempty"`
	Campaign        *struct {
		CampaignName string   `yaml:"campaign_name"`
		AdSetName    string   `yaml:"adset_name"`
		DailyBudget  int64    `yaml:"daily_budget"`
		CountryCodes []string `yaml:"country_codes"`
		StoreURL     string   `yaml:"store_url,omitempty"`
		Paused       bool     `yaml:"paused,omitempty"`
	} `yaml:"campaign,omitempty"`
}

// LoadBatch reads a batch submission file, with ${ENV} substitution.
func LoadBatch(path string) (*Batch, error) {
	var batch Batch
	if err := config.Load(path, &batch); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load batch file")
	}
	return &batch, nil
}

// ParseMode normalizes a mode string. An empty string defaults to
// marketer, the restrictive mode.
func ParseMode(s string) (core.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(core.ModeMarketer):
		return core.ModeMarketer, nil
	case string(core.ModeOperator):
		return core.ModeOperator, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown mode %q", s)
	}
}

// BuildJobs converts the batch into jobs ready for the controller,
// validating the fields that can be checked without touching a network.
func (b *Batch) BuildJobs() ([]*Job, error) {
	mode, err := ParseMode(b.Mode)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.Network) == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "batch is missing a network")
	}
	if len(b.Jobs) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "batch contains no jobs")
	}

	jobs := make([]*Job, 0, len(b.Jobs))
	for i, s := range b.Jobs {
		format, err := creative.ParseFormat(s.Format)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("job %d", i))
		}
		if s.Destination.ID == "" && s.Campaign == nil {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"job %d names neither a destination nor a campaign to create", i)
		}
		if len(s.Assets) == 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "job %d lists no assets", i)
		}

		job := NewJob(b.Network, mode)
		job.Destination = core.Destination{ID: s.Destination.ID, StoreURL: s.Destination.StoreURL}
		job.Format = format
		job.Locations = append([]importer.Location(nil), s.Assets...)
		job.Texts = creative.Texts{
			PrimaryTexts: s.Texts.PrimaryTexts,
			Headlines:    s.Texts.Headlines,
			CTA:          s.Texts.CTA,
			StoreURL:     s.Texts.StoreURL,
		}
		job.Naming = creative.NamingContext{
			ExplicitName: s.Naming.ExplicitName,
			GameName:     s.Naming.GameName,
			Prefix:       s.Naming.Prefix,
			Suffix:       s.Naming.Suffix,
		}
		job.InheritDefaults = s.InheritDefaults == nil || *s.InheritDefaults
		job.ForceRefresh = s.ForceRefresh
		if s.Campaign != nil {
			job.Campaign = &core.CampaignSpec{
				CampaignName: s.Campaign.CampaignName,
				AdSetName:    s.Campaign.AdSetName,
				DailyBudget:  s.Campaign.DailyBudget,
				CountryCodes: s.Campaign.CountryCodes,
				StoreURL:     s.Campaign.StoreURL,
				Paused:       s.Campaign.Paused,
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
