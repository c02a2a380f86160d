package model

// Channel identifies which front end produced a target.
type Channel string

const (
	ChannelURL   Channel = "url"
	ChannelSMS   Channel = "sms"
	ChannelQR    Channel = "qr"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice"
)

// Target is one piece of untrusted content handed to the scoring pipeline.
// A Target is immutable once constructed; adapters build a new Target per
// request rather than mutating one in flight.
type Target struct {
	Channel Channel `json:"channel"`
	Raw     string  `json:"raw"` // URL, message body, decoded payload, or transcript

	// Expectation is the user-stated purpose of a scanned payload (QR only).
	// It participates in the cache secondary-identity check.
	Expectation string `json:"expectation,omitempty"`

	// ContentHash is an md5 hex digest of the raw content for channels where
	// a prefix key is not identity-complete (email, voice).
	ContentHash string `json:"content_hash,omitempty"`
}

// NewURLTarget wraps a URL for the evidence pipeline.
func NewURLTarget(rawURL string) Target {
	return Target{Channel: ChannelURL, Raw: rawURL}
}

// NewSMSTarget wraps a short message body.
func NewSMSTarget(text string) Target {
	return Target{Channel: ChannelSMS, Raw: text}
}

// NewPayloadTarget wraps a decoded machine-readable payload together with the
// purpose the user expected the code to serve.
func NewPayloadTarget(payload, expectation string) Target {
	return Target{Channel: ChannelQR, Raw: payload, Expectation: expectation}
}

// NewEmailTarget wraps a raw email body. The content hash is computed by the
// adapter before caching.
func NewEmailTarget(body, hash string) Target {
	return Target{Channel: ChannelEmail, Raw: body, ContentHash: hash}
}

// NewVoiceTarget wraps a transcribed call. Transcription itself happens
// upstream; the pipeline only ever sees text.
func NewVoiceTarget(transcript, hash string) Target {
	return Target{Channel: ChannelVoice, Raw: transcript, ContentHash: hash}
}
