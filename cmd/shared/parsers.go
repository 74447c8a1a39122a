package shared

import (
	"fmt"
	"regexp"
	"strconv"
)

// ParseListen parses a listen address in the format "ws://host:port" or
// "wss://host:port". The host can be empty or "*" to bind to all interfaces.
func ParseListen(s string) (host string, port int, tls bool, err error) {
	re := regexp.MustCompile(`^(ws|wss)://([^:/]*):(\d+)/?$`)
	matches := re.FindStringSubmatch(s)

	if len(matches) != 4 {
		err = parsingError(s)
		return
	}

	tls = matches[1] == "wss"
	host = matches[2]
	if host == "*" { // also counts as all interfaces
		host = ""
	}

	port, err = strconv.Atoi(matches[3])
	if err != nil || port < 1 || port > 65535 {
		err = parsingError(s)
		return
	}

	return
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'protocol://host:port', where protocol = ws|wss", s)
}
