// Package lifecycle handles provisioning events: it maps each request onto a
// reconcile mode, runs the reconciler and reports the outcome back to the
// requester.
package lifecycle

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/igcatalog/pkg/reconcile"
)

// PhysicalResourceID identifies the provisioned resource in every response.
const PhysicalResourceID = "implementationGuides"

// RequestType is the provisioning request kind.
type RequestType string

const (
	RequestCreate RequestType = "Create"
	RequestUpdate RequestType = "Update"
	RequestDelete RequestType = "Delete"
)

// Mode maps the request onto a reconcile mode.
func (t RequestType) Mode() (reconcile.Mode, error) {
	switch t {
	case RequestCreate:
		return reconcile.ModePopulate, nil
	case RequestUpdate:
		return reconcile.ModeUpdate, nil
	case RequestDelete:
		return reconcile.ModeTeardown, nil
	default:
		return "", fmt.Errorf("unsupported request type %q", string(t))
	}
}

// ResourceProperties carries the request's resource parameters.
type ResourceProperties struct {
	BucketName string `json:"BucketName"`
}

// Event is a provisioning request.
type Event struct {
	RequestType        RequestType        `json:"RequestType"`
	ResponseURL        string             `json:"ResponseURL"`
	StackID            string             `json:"StackId"`
	RequestID          string             `json:"RequestId"`
	LogicalResourceID  string             `json:"LogicalResourceId"`
	ResourceProperties ResourceProperties `json:"ResourceProperties"`
}

// ParseEvent decodes an event document.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("invalid provisioning event: %w", err)
	}
	return ev, nil
}

// Response is the document reporting an event's outcome.
type Response struct {
	Status             reconcile.Status `json:"Status"`
	Reason             string           `json:"Reason,omitempty"`
	PhysicalResourceID string           `json:"PhysicalResourceId"`
	StackID            string           `json:"StackId"`
	RequestID          string           `json:"RequestId"`
	LogicalResourceID  string           `json:"LogicalResourceId"`
}

// NewResponse builds the response to ev.
func NewResponse(ev Event, status reconcile.Status, reason string) Response {
	return Response{
		Status:             status,
		Reason:             reason,
		PhysicalResourceID: PhysicalResourceID,
		StackID:            ev.StackID,
		RequestID:          ev.RequestID,
		LogicalResourceID:  ev.LogicalResourceID,
	}
}
