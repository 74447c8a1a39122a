//go:build !(js && wasm)

package config

import (
	"dominicbreuker/netpump/pkg/bridge"
	"dominicbreuker/netpump/pkg/bridge/netbridge"
)

func defaultBridge(deps *Dependencies, cfg *Client) (bridge.Bridge, error) {
	d, err := GetDialer(deps, cfg)
	if err != nil {
		return nil, err
	}
	return netbridge.New(d, netbridge.Options{
		DialTimeout:  cfg.DialTimeout,
		MaxFrameSize: cfg.MaxFrameSize,
	}), nil
}
