package ratelimit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/neuragate/neuragate/internal/filterchain"
)

// HeaderRemaining, HeaderReplenishRate, and HeaderBurstCapacity are the
// three X-RateLimit-* headers a response carries, per spec §4.4/§6.
// RetryAfterHeader tells a rejected client how long to wait.
const (
	HeaderRemaining     = "X-RateLimit-Remaining"
	HeaderReplenishRate = "X-RateLimit-Replenish-Rate"
	HeaderBurstCapacity = "X-RateLimit-Burst-Capacity"
	RetryAfterHeader    = "Retry-After"
)

type stage struct {
	limiter  Limiter
	resolver KeyResolver
	rate     int
	burst    int
}

// Preset is a named replenish-rate/burst-capacity/key combination an
// operator can define once and reference from many routes' "preset" arg
// instead of repeating the three values inline on each one.
type Preset struct {
	Name          string
	ReplenishRate int
	BurstCapacity int
	Key           string
}

// NewFactory returns the Factory registered under "RequestRateLimiter".
// Expected args: "replenish-rate", "burst-capacity" (both integers) and
// "key" (one of client-ip, user, path, ip-path), or a "preset" naming one
// of presets - an explicit replenish-rate/burst-capacity/key arg always
// overrides the matching preset field.
func NewFactory(limiter Limiter, presets ...Preset) filterchain.Factory {
	byName := make(map[string]Preset, len(presets))
	for _, p := range presets {
		byName[p.Name] = p
	}

	return func(args filterchain.Args) (filterchain.Stage, error) {
		rate, burst, key := 10, 20, args["key"]
		if preset, ok := byName[args["preset"]]; ok {
			rate, burst, key = preset.ReplenishRate, preset.BurstCapacity, preset.Key
			if args["key"] != "" {
				key = args["key"]
			}
		}

		if v := args["replenish-rate"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, err
			}
			rate = n
		}
		if v := args["burst-capacity"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, err
			}
			burst = n
		}

		return &stage{
			limiter:  limiter,
			resolver: ResolverByName(key),
			rate:     rate,
			burst:    burst,
		}, nil
	}
}

func (s *stage) Name() string { return "RequestRateLimiter" }

// Invoke implements C4: look up the bucket for this request's key, and
// either let it through (stamping the remaining-token headers on the
// eventual response) or synthesize a 429 immediately without ever calling
// next, per spec §4.4.
func (s *stage) Invoke(ctx context.Context, req *http.Request, next filterchain.Handler) (*http.Response, error) {
	key := s.resolver.Resolve(req)
	result, err := s.limiter.Allow(ctx, key, s.rate, s.burst)
	if err != nil {
		// the Limiter implementations fail open themselves; an error here
		// means something unexpected escaped that contract.
		return next(ctx, req)
	}

	if !result.Allowed {
		if st := filterchain.StateFrom(ctx); st != nil {
			st.RateLimited = true
		}
		resp := &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set(HeaderRemaining, "0")
		resp.Header.Set(HeaderReplenishRate, strconv.Itoa(s.rate))
		resp.Header.Set(HeaderBurstCapacity, strconv.Itoa(s.burst))
		resp.Header.Set(RetryAfterHeader, strconv.Itoa(int(result.RetryAfter.Seconds())+1))
		return resp, nil
	}

	resp, err := next(ctx, req)
	if resp != nil {
		resp.Header.Set(HeaderRemaining, strconv.Itoa(result.Remaining))
		resp.Header.Set(HeaderReplenishRate, strconv.Itoa(s.rate))
		resp.Header.Set(HeaderBurstCapacity, strconv.Itoa(s.burst))
	}
	return resp, err
}
