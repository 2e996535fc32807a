package prim

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the top level SIRI Lite document returned by the
// stop-monitoring and general-message endpoints.
type Envelope struct {
	Siri struct {
		ServiceDelivery ServiceDelivery `json:"ServiceDelivery"`
	} `json:"Siri"`
}

// ServiceDelivery carries at most one kind of delivery list.
type ServiceDelivery struct {
	ResponseTimestamp      string                   `json:"ResponseTimestamp"`
	ProducerRef            string                   `json:"ProducerRef"`
	GeneralMessageDelivery []GeneralMessageDelivery `json:"GeneralMessageDelivery,omitempty"`
	StopMonitoringDelivery []StopMonitoringDelivery `json:"StopMonitoringDelivery,omitempty"`
}

// DeliveryKind tags which delivery a ServiceDelivery carried.
type DeliveryKind int

const (
	NoDelivery DeliveryKind = iota
	GeneralMessage
	StopMonitoring
)

// Delivery is the unwrapped content of a ServiceDelivery. Exactly one of
// GeneralMessage or StopMonitoring is set, according to Kind.
type Delivery struct {
	Kind           DeliveryKind
	GeneralMessage *GeneralMessageDelivery
	StopMonitoring *StopMonitoringDelivery
}

// Header returns the status fields shared by both delivery kinds.
func (d Delivery) Header() *DeliveryHeader {
	switch d.Kind {
	case GeneralMessage:
		return &d.GeneralMessage.DeliveryHeader
	case StopMonitoring:
		return &d.StopMonitoring.DeliveryHeader
	}
	return nil
}

// Unwrap picks the first general message delivery, or failing that the
// first stop monitoring delivery.
func (s ServiceDelivery) Unwrap() Delivery {
	if len(s.GeneralMessageDelivery) > 0 {
		return Delivery{Kind: GeneralMessage, GeneralMessage: &s.GeneralMessageDelivery[0]}
	}
	if len(s.StopMonitoringDelivery) > 0 {
		return Delivery{Kind: StopMonitoring, StopMonitoring: &s.StopMonitoringDelivery[0]}
	}
	return Delivery{Kind: NoDelivery}
}

// DeliveryHeader holds the fields common to every SIRI delivery.
type DeliveryHeader struct {
	ResponseTimestamp string          `json:"ResponseTimestamp"`
	Version           string          `json:"Version"`
	Status            *Flag           `json:"Status,omitempty"`
	ErrorCondition    *ErrorCondition `json:"ErrorCondition,omitempty"`
}

// Failed reports whether the delivery declares a failure, either through
// Status or, when Status is absent, by carrying an error condition.
func (h *DeliveryHeader) Failed() bool {
	if h.Status == nil {
		return h.ErrorCondition != nil
	}
	return !bool(*h.Status)
}

// ErrorCondition describes why a delivery failed.
type ErrorCondition struct {
	ErrorInformation           *ErrorInfo `json:"ErrorInformation,omitempty"`
	InvalidDataReferencesError *ErrorInfo `json:"InvalidDataReferencesError,omitempty"`
	OtherError                 *ErrorInfo `json:"OtherError,omitempty"`
}

// ErrorInfo is the text of a SIRI error.
type ErrorInfo struct {
	ErrorText  string `json:"ErrorText"`
	ErrorType  string `json:"ErrorType,omitempty"`
	ErrorCode  string `json:"ErrorCode,omitempty"`
	ErrorValue string `json:"ErrorValue,omitempty"`
}

var unknownIdentifierMarkers = []string{
	"n'existe pas",
	"identifiants qui sont inconnus",
	"unknown identifier",
	"does not exist",
}

// UnknownIdentifiers reports whether the error says the requested
// MonitoringRef/LineRef pair or one of the identifiers is unknown.
func (e *ErrorCondition) UnknownIdentifiers() bool {
	if e == nil {
		return false
	}
	if e.InvalidDataReferencesError != nil {
		return true
	}
	for _, info := range []*ErrorInfo{e.ErrorInformation, e.OtherError} {
		if info == nil {
			continue
		}
		text := strings.ToLower(info.ErrorText)
		for _, marker := range unknownIdentifierMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
	}
	return false
}

// Text returns the first non-empty error text.
func (e *ErrorCondition) Text() string {
	if e == nil {
		return ""
	}
	for _, info := range []*ErrorInfo{e.ErrorInformation, e.InvalidDataReferencesError, e.OtherError} {
		if info != nil && info.ErrorText != "" {
			return info.ErrorText
		}
	}
	return ""
}

// Flag is a boolean the feeds encode either as a JSON bool or as "true"/"false".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*f = Flag(b)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = Flag(b)
	return nil
}

// Value wraps a SIRI Lite string value.
type Value struct {
	Value string `json:"value"`
}

// first returns the first value of a list, or "" when the list is empty.
func first(values []Value) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	return values[0].Value, true
}

// StopMonitoringDelivery lists the upcoming visits at the monitored stop.
type StopMonitoringDelivery struct {
	DeliveryHeader
	MonitoringRef      []Value              `json:"MonitoringRef,omitempty"`
	MonitoredStopVisit []MonitoredStopVisit `json:"MonitoredStopVisit,omitempty"`
}

// MonitoredStopVisit is one vehicle journey calling at the monitored stop.
type MonitoredStopVisit struct {
	RecordedAtTime          string          `json:"RecordedAtTime"`
	ItemIdentifier          string          `json:"ItemIdentifier"`
	MonitoringRef           *Value          `json:"MonitoringRef,omitempty"`
	MonitoredVehicleJourney *VehicleJourney `json:"MonitoredVehicleJourney,omitempty"`
}

// VehicleJourney describes the journey of a monitored vehicle.
type VehicleJourney struct {
	LineRef         *Value         `json:"LineRef,omitempty"`
	OperatorRef     *Value         `json:"OperatorRef,omitempty"`
	DirectionName   []Value        `json:"DirectionName,omitempty"`
	DestinationRef  *Value         `json:"DestinationRef,omitempty"`
	DestinationName []Value        `json:"DestinationName,omitempty"`
	JourneyNote     []Value        `json:"JourneyNote,omitempty"`
	MonitoredCall   *MonitoredCall `json:"MonitoredCall,omitempty"`
}

// MonitoredCall is the call of a vehicle at the monitored stop.
type MonitoredCall struct {
	StopPointName         []Value `json:"StopPointName,omitempty"`
	VehicleAtStop         *bool   `json:"VehicleAtStop,omitempty"`
	DestinationDisplay    []Value `json:"DestinationDisplay,omitempty"`
	AimedArrivalTime      string  `json:"AimedArrivalTime,omitempty"`
	ExpectedArrivalTime   string  `json:"ExpectedArrivalTime,omitempty"`
	ArrivalStatus         string  `json:"ArrivalStatus,omitempty"`
	ArrivalPlatformName   *Value  `json:"ArrivalPlatformName,omitempty"`
	AimedDepartureTime    string  `json:"AimedDepartureTime,omitempty"`
	ExpectedDepartureTime string  `json:"ExpectedDepartureTime,omitempty"`
	DepartureStatus       string  `json:"DepartureStatus,omitempty"`
}

// GeneralMessageDelivery lists general messages.
type GeneralMessageDelivery struct {
	DeliveryHeader
	InfoMessage []InfoMessage `json:"InfoMessage,omitempty"`
}

// InfoMessage is one general message.
type InfoMessage struct {
	RecordedAtTime        string         `json:"RecordedAtTime"`
	ValidUntilTime        string         `json:"ValidUntilTime"`
	ItemIdentifier        string         `json:"ItemIdentifier,omitempty"`
	InfoMessageIdentifier *Value         `json:"InfoMessageIdentifier,omitempty"`
	InfoMessageVersion    int            `json:"InfoMessageVersion"`
	InfoChannelRef        *Value         `json:"InfoChannelRef,omitempty"`
	Content               MessageContent `json:"Content"`
}

// MessageContent holds the texts of a general message.
type MessageContent struct {
	LineRef []Value   `json:"LineRef,omitempty"`
	Message []Message `json:"Message,omitempty"`
}

// Message is one text of a general message, typed SHORT_MESSAGE or TEXT_ONLY.
type Message struct {
	MessageType string `json:"MessageType"`
	MessageText *struct {
		Value string `json:"value"`
		Lang  string `json:"lang,omitempty"`
	} `json:"MessageText,omitempty"`
}

// LineReports is the navitia line_reports response.
type LineReports struct {
	Disruptions []Disruption `json:"disruptions"`
}

// Disruption is a navitia disruption.
type Disruption struct {
	ID                 string              `json:"id"`
	DisruptionID       string              `json:"disruption_id"`
	Status             string              `json:"status"`
	Cause              string              `json:"cause"`
	Category           string              `json:"category"`
	Severity           *Severity           `json:"severity,omitempty"`
	Tags               []Tag               `json:"tags,omitempty"`
	ApplicationPeriods []ApplicationPeriod `json:"application_periods"`
	Messages           []DisruptionMessage `json:"messages"`
	UpdatedAt          string              `json:"updated_at"`
}

// HasTag reports whether the disruption carries the tag, ignoring case.
func (d Disruption) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(string(t), tag) {
			return true
		}
	}
	return false
}

// Severity is the navitia severity of a disruption.
type Severity struct {
	Name     string `json:"name"`
	Effect   string `json:"effect"`
	Priority int    `json:"priority"`
	Color    string `json:"color"`
}

// ApplicationPeriod is a navitia period in basic ISO format (20060102T150405).
type ApplicationPeriod struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
}

// DisruptionMessage is one text of a disruption, keyed by its channel.
type DisruptionMessage struct {
	Text    string `json:"text"`
	Channel struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		ContentType string   `json:"content_type"`
		Types       []string `json:"types"`
	} `json:"channel"`
}

// Tag is a disruption tag. The feed has published tags both as plain
// strings and as {"id", "name"} objects.
type Tag string

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = Tag(obj.Name)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Tag(s)
	return nil
}
