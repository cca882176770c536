// Package instagram walks the feed of posts tagging a brand account over
// Instagram's web API.
//
// Client wraps a resty client with a cookie jar holding the stored session,
// paces every request through a ratelimit.Limiter and maps login redirects
// and 401/403 responses to errors.ErrSessionExpired. WebSession implements
// feed.Session on top of it:
//
//	client, _ := instagram.NewClient(instagram.ClientOptions{Limiter: ratelimit.PerMinute(30, 5)})
//	client.SetSession(state)
//
//	session := instagram.NewWebSession(client, instagram.SessionOptions{})
//	if err := session.Open(ctx, "brand_account"); err != nil {
//	    return err
//	}
//	result, err := paginator.New(session, classifier, pipeline, cfg, log).Run(ctx, params)
//
// Scrolling loads further pages of the tagged feed; opening a detail fetches
// the post page and reads its timestamp and images with goquery.
package instagram
