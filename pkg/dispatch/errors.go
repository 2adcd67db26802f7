package dispatch

import "errors"

// ErrSubscriptionExpired marks a subscription the push service no longer
// accepts (404 Not Found / 410 Gone). It is safe to remove from the registry.
var ErrSubscriptionExpired = errors.New("push subscription expired")
