package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// sourceFile is the YAML layout of a source profile. Every field is
// optional; unset fields keep their current value.
//
//	start_url: https://news.ycombinator.com/newest
//	fetcher: http
//	selectors:
//	  item: .athing
//	  title: .titleline > a
//	  age: .age
//	  age_attribute: title
//	  next: .morelink
//	selector_timeout: 10s
type sourceFile struct {
	StartURL  string `yaml:"start_url"`
	Fetcher   string `yaml:"fetcher"`
	Selectors struct {
		Item         string `yaml:"item"`
		Title        string `yaml:"title"`
		Score        string `yaml:"score"`
		Age          string `yaml:"age"`
		Author       string `yaml:"author"`
		AgeAttribute string `yaml:"age_attribute"`
		Next         string `yaml:"next"`
	} `yaml:"selectors"`
	SelectorTimeout string `yaml:"selector_timeout"`
	QuietInterval   string `yaml:"quiet_interval"`
}

// ApplySourceFile overlays the YAML source profile at path onto c.
func (c *Config) ApplySourceFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	var f sourceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse source file: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Source.StartURL, f.StartURL)
	set(&c.Source.Fetcher, f.Fetcher)
	set(&c.Source.ItemSelector, f.Selectors.Item)
	set(&c.Source.TitleSelector, f.Selectors.Title)
	set(&c.Source.ScoreSelector, f.Selectors.Score)
	set(&c.Source.AgeSelector, f.Selectors.Age)
	set(&c.Source.AuthorSelector, f.Selectors.Author)
	set(&c.Source.AgeAttribute, f.Selectors.AgeAttribute)
	set(&c.Source.NextSelector, f.Selectors.Next)

	if err := setDuration(&c.Run.SelectorTimeout, f.SelectorTimeout); err != nil {
		return fmt.Errorf("selector_timeout: %w", err)
	}
	if err := setDuration(&c.Run.QuietInterval, f.QuietInterval); err != nil {
		return fmt.Errorf("quiet_interval: %w", err)
	}
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Validate reports configuration that would make every run fail.
func (c *Config) Validate() error {
	if c.Source.StartURL == "" {
		return fmt.Errorf("start URL is empty")
	}
	if c.Source.ItemSelector == "" || c.Source.NextSelector == "" {
		return fmt.Errorf("item and next-page selectors are required")
	}
	if c.Run.TargetCount < 1 {
		return fmt.Errorf("target count must be positive, got %d", c.Run.TargetCount)
	}
	if c.Run.SelectorTimeout <= 0 {
		return fmt.Errorf("selector timeout must be positive, got %s", c.Run.SelectorTimeout)
	}
	return nil
}
