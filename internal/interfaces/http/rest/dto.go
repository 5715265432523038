package rest

import (
	"time"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/session"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/cache"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
)

type createSessionRequest struct {
	Subject string `json:"subject"`
}

type sessionResponse struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
}

type viewResponse struct {
	Subject    string                          `json:"subject"`
	View       string                          `json:"view"`
	Strategy   string                          `json:"strategy"`
	Categories []record.Category               `json:"categories"`
	Payloads   map[string]any                  `json:"payloads"`
	Errors     map[string]errors.ErrorResponse `json:"errors,omitempty"`
	Complete   bool                            `json:"complete"`
}

func toViewResponse(data *session.ViewData, requestID string) viewResponse {
	resp := viewResponse{
		Subject:    data.Subject.String(),
		View:       data.View.String(),
		Strategy:   data.Strategy.String(),
		Categories: data.Categories.Slice(),
		Payloads:   make(map[string]any, len(data.Payloads)),
		Complete:   data.Complete(),
	}
	for category, payload := range data.Payloads {
		resp.Payloads[category.String()] = payload
	}
	if len(data.Errors) > 0 {
		resp.Errors = make(map[string]errors.ErrorResponse, len(data.Errors))
		for category, err := range data.Errors {
			resp.Errors[category.String()] = errors.NewErrorResponse(err, requestID)
		}
	}
	return resp
}

type refocusResponse struct {
	Revalidated []record.Category `json:"revalidated"`
}

type invalidateRequest struct {
	Subject string `json:"subject"`
	// Target is a category name or "all".
	Target string `json:"target"`
}

type invalidateResponse struct {
	Affected int `json:"affected"`
}

// networkRequest mirrors the browser Network Information API.
type networkRequest struct {
	SaveData      *bool    `json:"saveData,omitempty"`
	EffectiveType *string  `json:"effectiveType,omitempty"`
	RTTMillis     *float64 `json:"rtt,omitempty"`
	DownlinkMbps  *float64 `json:"downlink,omitempty"`
}

func (r networkRequest) signals() network.Signals {
	sig := network.Signals{
		SaveData:      r.SaveData,
		EffectiveType: r.EffectiveType,
		DownlinkMbps:  r.DownlinkMbps,
	}
	if r.RTTMillis != nil {
		rtt := time.Duration(*r.RTTMillis * float64(time.Millisecond))
		sig.RTT = &rtt
	}
	return sig
}

type networkResponse struct {
	Degraded bool `json:"degraded"`
}

type entryResponse struct {
	Key       string      `json:"key"`
	State     cache.State `json:"state"`
	Payload   any         `json:"payload,omitempty"`
	FetchedAt *time.Time  `json:"fetchedAt,omitempty"`
}

func toEntryResponse(e cache.Entry) entryResponse {
	resp := entryResponse{
		Key:     e.Key.String(),
		State:   e.State,
		Payload: e.Payload,
	}
	if e.HasPayload() {
		fetchedAt := e.FetchedAt
		resp.FetchedAt = &fetchedAt
	}
	return resp
}
