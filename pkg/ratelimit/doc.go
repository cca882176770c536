// Package ratelimit paces requests made by the feed session.
//
// TokenBucket allows short bursts up to its capacity and then one request
// per refill interval:
//
//	limiter := ratelimit.PerMinute(30, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// issue the request
package ratelimit
