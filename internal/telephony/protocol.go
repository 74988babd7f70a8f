package telephony

import (
	"fmt"
	"strings"

	"github.com/soyeahso/switchboard/internal/domain"
)

// Codec translates bridge operations into the control plane's line grammar
// and back. The exact grammar is a property of the specific switch; the
// bridge only depends on this contract.
type Codec interface {
	Auth(token string) string
	SetStatus(addr domain.RoutingAddress, status domain.RoutingStatus) string
	QueryStatus(addr domain.RoutingAddress) string
	ParseReply(line string) (Reply, error)
}

// Reply is one parsed control-plane reply line.
type Reply struct {
	OK     bool
	Status domain.RoutingStatus // populated for query acknowledgments
	Reason string               // populated for rejections
}

// LineCodec speaks the switchctl grammar:
//
//	AUTH <token>            -> OK AUTH            | ERR AUTH <reason>
//	SET <ext>@<host> <ST>   -> OK SET             | ERR SET <reason>
//	QRY <ext>@<host>        -> OK QRY <ST>        | ERR QRY <reason>
//
// Status tokens on the wire are upper-case without underscores.
type LineCodec struct{}

func (LineCodec) Auth(token string) string {
	return "AUTH " + token
}

func (LineCodec) SetStatus(addr domain.RoutingAddress, status domain.RoutingStatus) string {
	return fmt.Sprintf("SET %s %s", addr.String(), wireStatus(status))
}

func (LineCodec) QueryStatus(addr domain.RoutingAddress) string {
	return "QRY " + addr.String()
}

func (LineCodec) ParseReply(line string) (Reply, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Reply{}, fmt.Errorf("malformed reply: %q", line)
	}

	switch fields[0] {
	case "OK":
		rep := Reply{OK: true}
		if len(fields) >= 3 {
			rep.Status = parseWireStatus(fields[2])
		}
		return rep, nil
	case "ERR":
		reason := "unspecified"
		if len(fields) >= 3 {
			reason = strings.Join(fields[2:], " ")
		}
		return Reply{OK: false, Reason: reason}, nil
	default:
		return Reply{}, fmt.Errorf("malformed reply: %q", line)
	}
}

func wireStatus(s domain.RoutingStatus) string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", ""))
}

func parseWireStatus(tok string) domain.RoutingStatus {
	switch strings.ToUpper(tok) {
	case "AVAILABLE":
		return domain.StatusAvailable
	case "BUSY":
		return domain.StatusBusy
	case "ONBREAK":
		return domain.StatusOnBreak
	case "OFFLINE":
		return domain.StatusOffline
	default:
		return domain.StatusUnknown
	}
}
