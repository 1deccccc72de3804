// Package dockerhub provides the http-handler for Docker Hub webhooks.
package dockerhub

import (
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/provider"
)

func New(ch chan<- *notification.PushNotification, opts ...provider.Option) *provider.Provider {
	return provider.New(notification.RegistryDockerHub, notification.ParseDockerHub, ch, opts...)
}
