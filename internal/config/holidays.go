package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adanyl0v/go-planner/internal/models"
)

// Holiday is a calendar day on which nobody can be scheduled.
type Holiday struct {
	Date time.Time
	Name string
}

type holidaysFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// LoadHolidays reads a YAML file of the form
//
//	holidays:
//	  - date: 2025-12-25
//	    name: Christmas
func LoadHolidays(path string) ([]Holiday, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holidays file: %w", err)
	}
	return ParseHolidays(data)
}

func ParseHolidays(data []byte) ([]Holiday, error) {
	var file holidaysFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse holidays file: %w", err)
	}

	holidays := make([]Holiday, 0, len(file.Holidays))
	for i, h := range file.Holidays {
		day, err := models.ParseDay(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday #%d: %w", i+1, err)
		}
		holidays = append(holidays, Holiday{Date: day, Name: h.Name})
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date.Before(holidays[j].Date) })
	return holidays, nil
}
