package config

import (
	"errors"
	"strconv"
	"strings"
)

// RatelimitPreset is a named rate-limit configuration an operator can
// reference from a route's RequestRateLimiter filter args instead of
// repeating replenish-rate/burst-capacity/key inline.
type RatelimitPreset struct {
	Name          string
	ReplenishRate int
	BurstCapacity int
	Key           string
}

var errInvalidRatelimitPreset = errors.New("invalid rate-limit preset (expected name=...,replenish-rate=N,burst-capacity=N[,key=...])")

// ratelimitPresetFlags collects repeated -rate-limit-preset flags, each a
// comma-separated key=value list, grounded on the key=value flag parsing
// this gateway's ambient stack already uses for generic map flags.
type ratelimitPresetFlags []RatelimitPreset

func (r ratelimitPresetFlags) String() string {
	s := make([]string, len(r))
	for i, ri := range r {
		s[i] = ri.Name
	}
	return strings.Join(s, ",")
}

func (r *ratelimitPresetFlags) Set(value string) error {
	var p RatelimitPreset
	for _, vi := range strings.Split(value, ",") {
		k, v, found := strings.Cut(vi, "=")
		if !found {
			return errInvalidRatelimitPreset
		}
		switch k {
		case "name":
			p.Name = v
		case "replenish-rate":
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			p.ReplenishRate = n
		case "burst-capacity":
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			p.BurstCapacity = n
		case "key":
			p.Key = v
		default:
			return errInvalidRatelimitPreset
		}
	}
	if p.Name == "" || p.ReplenishRate <= 0 || p.BurstCapacity <= 0 {
		return errInvalidRatelimitPreset
	}
	*r = append(*r, p)
	return nil
}

func (r *ratelimitPresetFlags) UnmarshalYAML(unmarshal func(any) error) error {
	var presets []RatelimitPreset
	if err := unmarshal(&presets); err != nil {
		return err
	}
	*r = presets
	return nil
}
