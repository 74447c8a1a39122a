//go:build js && wasm

package config

import (
	"fmt"

	"dominicbreuker/netpump/pkg/bridge"
	"dominicbreuker/netpump/pkg/bridge/jsbridge"
)

func defaultBridge(_ *Dependencies, _ *Client) (bridge.Bridge, error) {
	b, err := jsbridge.New("")
	if err != nil {
		return nil, fmt.Errorf("jsbridge.New(): %w", err)
	}
	return b, nil
}
