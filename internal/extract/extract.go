// Package extract pulls the area name and temperature out of a detail page.
package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// Field names reported by MissingFieldError.
const (
	FieldAreaName    = "areaName"
	FieldTemperature = "temperature"
)

// Default selectors for the tianqi.moji.com detail page.
const (
	DefaultAreaNameSelector    = ".search_default em"
	DefaultTemperatureSelector = ".wea_weather.clearfix em"
)

// ErrMissingField matches every MissingFieldError via errors.Is.
var ErrMissingField = errors.New("missing field")

// MissingFieldError reports a well-formed page that lacks an expected element.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// Is lets errors.Is(err, ErrMissingField) match.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// SelectorError reports a structural pattern that failed to compile.
type SelectorError struct {
	Name     string
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid %s selector %q: %v", e.Name, e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error {
	return e.Err
}

// Compile parses a CSS selector, naming it in the returned SelectorError.
func Compile(name, selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &SelectorError{Name: name, Selector: selector, Err: err}
	}
	return sel, nil
}

// Extractor runs the two detail-page queries. It holds only compiled
// selectors and is safe for concurrent use.
type Extractor struct {
	areaName    cascadia.Selector
	temperature cascadia.Selector
}

// New compiles both selectors up front so a bad pattern fails before any
// network activity.
func New(areaNameSelector, temperatureSelector string) (*Extractor, error) {
	area, err := Compile(FieldAreaName, areaNameSelector)
	if err != nil {
		return nil, err
	}
	temp, err := Compile(FieldTemperature, temperatureSelector)
	if err != nil {
		return nil, err
	}
	return &Extractor{areaName: area, temperature: temp}, nil
}

// Extract returns the raw text of the first area-name and temperature
// matches. Text is concatenated as-is, without trimming.
func (e *Extractor) Extract(markup []byte) (weather.Reading, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return weather.Reading{}, fmt.Errorf("parse document: %w", err)
	}

	area := doc.FindMatcher(e.areaName).First()
	if area.Length() == 0 {
		return weather.Reading{}, &MissingFieldError{Field: FieldAreaName}
	}
	temp := doc.FindMatcher(e.temperature).First()
	if temp.Length() == 0 {
		return weather.Reading{}, &MissingFieldError{Field: FieldTemperature}
	}

	return weather.Reading{
		AreaName:    area.Text(),
		Temperature: temp.Text(),
	}, nil
}
