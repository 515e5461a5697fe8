// Package envelope implements C5: framing a full AMF packet (version,
// headers, bodies) around the AMF0/AMF3 value codecs. Grounded in the
// teacher's pkg/protocol/rtmp command framing (read N, then N times
// read-one-thing) generalized to the envelope's header/body counts.
package envelope

// Version identifies which value codec frames a packet's headers and
// bodies.
type Version uint16

const (
	VersionAMF0 Version = 0
	VersionAMF3 Version = 3

	// VersionFMS is accepted on read and treated identically to
	// VersionAMF0 (spec §9 open question); no example in the pack pins
	// its numeric value, so 1 is used as the accepted sentinel.
	VersionFMS Version = 1
)

// Header is one envelope header: an out-of-band name/value pair a
// client or server attaches to a packet (credentials, persistence
// hints, gateway URL rewrites).
type Header struct {
	Name           string
	MustUnderstand bool
	Length         int32 // carried for wire fidelity; -1 means unknown
	Data           interface{}
}

// Body is one remoting call or response within a packet.
type Body struct {
	TargetURI   string
	ResponseURI string
	Length      int32 // carried for wire fidelity; -1 means unknown
	Data        interface{}
}

// Packet is a full envelope: version plus its headers and bodies.
type Packet struct {
	Version Version
	Headers []Header
	Bodies  []Body
}

// WellKnownCredentialsHeader is the header name carrying a base64
// "userid:password" payload for packet-level authentication.
const WellKnownCredentialsHeader = "Credentials"

// WellKnownRequestPersistentHeader asks the server to echo a header
// back on every subsequent response in the session.
const WellKnownRequestPersistentHeader = "RequestPersistentHeader"

// WellKnownAppendToGatewayURL asks the server to append a token to the
// gateway URL on redirect.
const WellKnownAppendToGatewayURL = "AppendToGatewayUrl"

// Well-known responseURI suffixes.
const (
	SuffixOnResult = "/onResult"
	SuffixOnStatus = "/onStatus"
)
