// Package analytics records how leads move through the funnel and
// summarises drop-off per step.
package analytics

import (
	"errors"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/funnel"
)

// ErrLeadNotFound is returned when tracking an id that was never initialised.
var ErrLeadNotFound = errors.New("lead not found")

// Lead is one visitor's tracking record. TimeOnStep is in milliseconds.
type Lead struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	UserAgent      string            `json:"userAgent"`
	IP             string            `json:"ip,omitempty"`
	CurrentStep    funnel.Step       `json:"currentStep"`
	StepNumber     int               `json:"stepNumber"`
	TimeOnStep     int64             `json:"timeOnStep"`
	Responses      map[string]string `json:"responses"`
	Abandoned      bool              `json:"abandoned"`
	Completed      bool              `json:"completed"`
	ConversionStep string            `json:"conversionStep,omitempty"`
	ConversionData map[string]any    `json:"conversionData,omitempty"`
}

// LeadInfo is what the client tells us about itself at the start.
type LeadInfo struct {
	UserAgent string
	IP        string
}

// StepAnalytics is one row of the funnel report.
// AverageTimeSpent is in seconds.
type StepAnalytics struct {
	StepName         funnel.Step    `json:"stepName"`
	StepNumber       int            `json:"stepNumber"`
	TotalVisits      int            `json:"totalVisits"`
	Completions      int            `json:"completions"`
	Abandonments     int            `json:"abandonments"`
	ConversionRate   float64        `json:"conversionRate"`
	AbandonmentRate  float64        `json:"abandonmentRate"`
	AverageTimeSpent float64        `json:"averageTimeSpent"`
	Responses        map[string]int `json:"responses,omitempty"`
}

// Summary is the whole-funnel report. LeadData is only filled by Export.
type Summary struct {
	TotalLeads            int             `json:"totalLeads"`
	CompletedFunnels      int             `json:"completedFunnels"`
	OverallConversionRate float64         `json:"overallConversionRate"`
	StepAnalytics         []StepAnalytics `json:"stepAnalytics"`
	LeadData              []Lead          `json:"leadData,omitempty"`
	LastUpdated           time.Time       `json:"lastUpdated"`
}

// Pixel methods, mirroring the browser fbq API.
const (
	PixelTrack       = "track"
	PixelTrackCustom = "trackCustom"
)

// PixelEvent is a tracking call for the client to forward to the pixel.
type PixelEvent struct {
	Method string         `json:"method"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Offer details reported with every Purchase event.
const (
	OfferName     = "Divine Activation Plan"
	OfferCategory = "Spiritual Product"
	OfferValue    = 9.00
	OfferCurrency = "USD"
)

func (l Lead) clone() Lead {
	out := l
	out.Responses = make(map[string]string, len(l.Responses))
	for k, v := range l.Responses {
		out.Responses[k] = v
	}
	if l.ConversionData != nil {
		out.ConversionData = make(map[string]any, len(l.ConversionData))
		for k, v := range l.ConversionData {
			out.ConversionData[k] = v
		}
	}
	return out
}
