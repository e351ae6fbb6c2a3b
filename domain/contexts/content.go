package contexts

import (
	"encoding/json"
	"time"

	pkgerrors "contexthub-backend/pkg/errors"
)

// Type identifies the kind of context a payload describes
type Type string

const (
	TypeDeployment   Type = "deployment"
	TypeError        Type = "error"
	TypeScreenshot   Type = "screenshot"
	TypeLog          Type = "log"
	TypeMetric       Type = "metric"
	TypeTrace        Type = "trace"
	TypeConversation Type = "conversation"
	TypeCustom       Type = "custom"
)

// DeploymentPayload describes a deployment of a hosted project
type DeploymentPayload struct {
	DeploymentID string                 `json:"deployment_id"`
	Environment  string                 `json:"environment"`
	Status       string                 `json:"status"`
	CommitHash   string                 `json:"commit_hash,omitempty"`
	Branch       string                 `json:"branch,omitempty"`
	URL          string                 `json:"url,omitempty"`
	StartedAt    time.Time              `json:"started_at,omitempty"`
	FinishedAt   time.Time              `json:"finished_at,omitempty"`
	Detail       map[string]interface{} `json:"detail,omitempty"`
}

// ErrorPayload describes an error observed in a hosted project
type ErrorPayload struct {
	Message     string                 `json:"message"`
	ErrorType   string                 `json:"error_type,omitempty"`
	StackTrace  string                 `json:"stack_trace,omitempty"`
	Service     string                 `json:"service,omitempty"`
	Severity    string                 `json:"severity,omitempty"`
	Occurrences int                    `json:"occurrences,omitempty"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
}

// ScreenshotPayload references a captured screenshot
type ScreenshotPayload struct {
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
}

// LogPayload carries a slice of log output
type LogPayload struct {
	Source string   `json:"source"`
	Level  string   `json:"level,omitempty"`
	Lines  []string `json:"lines"`
}

// MetricPayload carries a single metric observation
type MetricPayload struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// TracePayload references a distributed trace
type TracePayload struct {
	TraceID     string  `json:"trace_id"`
	RootService string  `json:"root_service,omitempty"`
	SpanCount   int     `json:"span_count,omitempty"`
	DurationMS  float64 `json:"duration_ms,omitempty"`
}

// Content is a tagged union over the known context kinds. The tag and the
// populated payload are kept consistent by construction: the only way to
// build a Content is through the New*Content constructors, and exactly one
// payload is ever set.
type Content struct {
	contentType  Type
	deployment   *DeploymentPayload
	errorReport  *ErrorPayload
	screenshot   *ScreenshotPayload
	log          *LogPayload
	metric       *MetricPayload
	trace        *TracePayload
	conversation *Conversation
	custom       map[string]interface{}
}

// NewDeploymentContent builds deployment-tagged content
func NewDeploymentContent(p DeploymentPayload) Content {
	return Content{contentType: TypeDeployment, deployment: &p}
}

// NewErrorContent builds error-tagged content
func NewErrorContent(p ErrorPayload) Content {
	return Content{contentType: TypeError, errorReport: &p}
}

// NewScreenshotContent builds screenshot-tagged content
func NewScreenshotContent(p ScreenshotPayload) Content {
	return Content{contentType: TypeScreenshot, screenshot: &p}
}

// NewLogContent builds log-tagged content
func NewLogContent(p LogPayload) Content {
	return Content{contentType: TypeLog, log: &p}
}

// NewMetricContent builds metric-tagged content
func NewMetricContent(p MetricPayload) Content {
	return Content{contentType: TypeMetric, metric: &p}
}

// NewTraceContent builds trace-tagged content
func NewTraceContent(p TracePayload) Content {
	return Content{contentType: TypeTrace, trace: &p}
}

// NewConversationContent builds conversation-tagged content
func NewConversationContent(c Conversation) Content {
	return Content{contentType: TypeConversation, conversation: &c}
}

// NewCustomContent builds content for payloads outside the known kinds
func NewCustomContent(payload map[string]interface{}) Content {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return Content{contentType: TypeCustom, custom: payload}
}

// Type returns the content tag
func (c Content) Type() Type {
	return c.contentType
}

// IsZero reports whether the content was never constructed
func (c Content) IsZero() bool {
	return c.contentType == ""
}

// Deployment returns the deployment payload when the tag matches
func (c Content) Deployment() (*DeploymentPayload, bool) {
	return c.deployment, c.contentType == TypeDeployment
}

// ErrorReport returns the error payload when the tag matches
func (c Content) ErrorReport() (*ErrorPayload, bool) {
	return c.errorReport, c.contentType == TypeError
}

// Screenshot returns the screenshot payload when the tag matches
func (c Content) Screenshot() (*ScreenshotPayload, bool) {
	return c.screenshot, c.contentType == TypeScreenshot
}

// Log returns the log payload when the tag matches
func (c Content) Log() (*LogPayload, bool) {
	return c.log, c.contentType == TypeLog
}

// Metric returns the metric payload when the tag matches
func (c Content) Metric() (*MetricPayload, bool) {
	return c.metric, c.contentType == TypeMetric
}

// Trace returns the trace payload when the tag matches
func (c Content) Trace() (*TracePayload, bool) {
	return c.trace, c.contentType == TypeTrace
}

// Conversation returns the conversation payload when the tag matches
func (c Content) Conversation() (*Conversation, bool) {
	return c.conversation, c.contentType == TypeConversation
}

// Custom returns the free-form payload when the tag matches
func (c Content) Custom() (map[string]interface{}, bool) {
	return c.custom, c.contentType == TypeCustom
}

// WirePayload returns the type-tagged key and payload used in the MCP
// envelope's content object.
func (c Content) WirePayload() (string, interface{}) {
	switch c.contentType {
	case TypeDeployment:
		return string(TypeDeployment), c.deployment
	case TypeError:
		return string(TypeError), c.errorReport
	case TypeScreenshot:
		return string(TypeScreenshot), c.screenshot
	case TypeLog:
		return string(TypeLog), c.log
	case TypeMetric:
		return string(TypeMetric), c.metric
	case TypeTrace:
		return string(TypeTrace), c.trace
	case TypeConversation:
		return string(TypeConversation), c.conversation
	default:
		return string(TypeCustom), c.custom
	}
}

// contentEnvelope is the serialized form: the tag plus exactly one payload
type contentEnvelope struct {
	Type         Type                   `json:"type"`
	Deployment   *DeploymentPayload     `json:"deployment,omitempty"`
	Error        *ErrorPayload          `json:"error,omitempty"`
	Screenshot   *ScreenshotPayload     `json:"screenshot,omitempty"`
	Log          *LogPayload            `json:"log,omitempty"`
	Metric       *MetricPayload         `json:"metric,omitempty"`
	Trace        *TracePayload          `json:"trace,omitempty"`
	Conversation *Conversation          `json:"conversation,omitempty"`
	Custom       map[string]interface{} `json:"custom,omitempty"`
}

// hasTypedPayload reports whether any of the non-custom payload keys
// is populated
func (e contentEnvelope) hasTypedPayload() bool {
	return e.Deployment != nil || e.Error != nil || e.Screenshot != nil ||
		e.Log != nil || e.Metric != nil || e.Trace != nil || e.Conversation != nil
}

// MarshalJSON implements json.Marshaler
func (c Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentEnvelope{
		Type:         c.contentType,
		Deployment:   c.deployment,
		Error:        c.errorReport,
		Screenshot:   c.screenshot,
		Log:          c.log,
		Metric:       c.metric,
		Trace:        c.trace,
		Conversation: c.conversation,
		Custom:       c.custom,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Content) UnmarshalJSON(data []byte) error {
	var env contentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.Type {
	case TypeDeployment:
		if env.Deployment == nil {
			return pkgerrors.NewInvalidArgumentError("deployment content missing deployment payload")
		}
		*c = Content{contentType: TypeDeployment, deployment: env.Deployment}
	case TypeError:
		if env.Error == nil {
			return pkgerrors.NewInvalidArgumentError("error content missing error payload")
		}
		*c = Content{contentType: TypeError, errorReport: env.Error}
	case TypeScreenshot:
		if env.Screenshot == nil {
			return pkgerrors.NewInvalidArgumentError("screenshot content missing screenshot payload")
		}
		*c = Content{contentType: TypeScreenshot, screenshot: env.Screenshot}
	case TypeLog:
		if env.Log == nil {
			return pkgerrors.NewInvalidArgumentError("log content missing log payload")
		}
		*c = Content{contentType: TypeLog, log: env.Log}
	case TypeMetric:
		if env.Metric == nil {
			return pkgerrors.NewInvalidArgumentError("metric content missing metric payload")
		}
		*c = Content{contentType: TypeMetric, metric: env.Metric}
	case TypeTrace:
		if env.Trace == nil {
			return pkgerrors.NewInvalidArgumentError("trace content missing trace payload")
		}
		*c = Content{contentType: TypeTrace, trace: env.Trace}
	case TypeConversation:
		if env.Conversation == nil {
			return pkgerrors.NewInvalidArgumentError("conversation content missing conversation payload")
		}
		*c = Content{contentType: TypeConversation, conversation: env.Conversation}
	case TypeCustom, "":
		if env.hasTypedPayload() {
			return pkgerrors.NewInvalidArgumentError("untyped content carries a typed payload")
		}
		custom := env.Custom
		if custom == nil {
			custom = make(map[string]interface{})
		}
		*c = Content{contentType: TypeCustom, custom: custom}
	default:
		return pkgerrors.NewInvalidArgumentError("unknown content type: " + string(env.Type))
	}

	return nil
}
