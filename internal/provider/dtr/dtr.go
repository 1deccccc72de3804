// Package dtr provides the http-handler for Docker Trusted Registry
// webhooks.
package dtr

import (
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/provider"
)

// New returns a provider for DTR webhooks. DTR payloads do not contain the
// registry host, host is set as host of all notifications.
func New(ch chan<- *notification.PushNotification, host string, opts ...provider.Option) *provider.Provider {
	opts = append(
		[]provider.Option{provider.WithNotificationOptions(notification.WithHost(host))},
		opts...,
	)

	return provider.New(notification.RegistryDTR, notification.ParseDTR, ch, opts...)
}
