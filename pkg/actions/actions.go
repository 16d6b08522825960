// Package actions wires the built-in action executors into a registry.
package actions

import (
	"github.com/hivecrm/journey/pkg/actions/logmsg"
	"github.com/hivecrm/journey/pkg/actions/tag"
	"github.com/hivecrm/journey/pkg/actions/wait"
	"github.com/hivecrm/journey/pkg/actions/webhook"
	"github.com/hivecrm/journey/pkg/registry"
)

// RegisterDefaults registers every built-in action factory. The webhook
// client is shared so its in-flight cap and circuit breakers are global;
// the tag writer is the CRM-side mutation surface.
func RegisterDefaults(reg *registry.Registry, client *webhook.Client, tagWriter tag.Writer) {
	reg.RegisterAction(webhook.NewFactory(client))
	reg.RegisterAction(wait.NewFactory())
	reg.RegisterAction(logmsg.NewFactory())
	reg.RegisterAction(tag.NewAddFactory(tagWriter))
	reg.RegisterAction(tag.NewRemoveFactory(tagWriter))
}
