package services

import (
	"github.com/rescale/bucketdesk/internal/ipc"
)

// Channels served by the long-lived process.
const (
	ChannelGetApps               = "get-apps"
	ChannelAddApp                = "add-app"
	ChannelUpdateApp             = "update-app"
	ChannelDeleteApp             = "delete-app"
	ChannelInitApp               = "init-app"
	ChannelGetBuckets            = "get-buckets"
	ChannelSwitchBucket          = "switch-bucket"
	ChannelGetConfig             = "get-config"
	ChannelSetMarkdown           = "set-markdown"
	ChannelGetTransfer           = "get-transfer"
	ChannelClearTransferDoneList = "clear-transfer-done-list"
	ChannelAddTransfer           = "add-transfer"
	ChannelUpdateTransfer        = "update-transfer"
	ChannelGetRecentLinks        = "get-recent-links"
)

// Register binds every AppService handler on reg. Call before reg.Start.
func Register(reg *ipc.Registry, svc *AppService) error {
	handlers := []struct {
		channel string
		handler ipc.HandlerFunc
	}{
		{ChannelGetApps, svc.GetApps},
		{ChannelAddApp, svc.AddApp},
		{ChannelUpdateApp, svc.UpdateApp},
		{ChannelDeleteApp, svc.DeleteApp},
		{ChannelInitApp, svc.InitApp},
		{ChannelGetBuckets, svc.GetBuckets},
		{ChannelSwitchBucket, svc.SwitchBucket},
		{ChannelGetConfig, svc.GetConfig},
		{ChannelSetMarkdown, svc.SetMarkdown},
		{ChannelGetTransfer, svc.GetTransfer},
		{ChannelClearTransferDoneList, svc.ClearTransferDoneList},
		{ChannelAddTransfer, svc.AddTransfer},
		{ChannelUpdateTransfer, svc.UpdateTransfer},
		{ChannelGetRecentLinks, svc.GetRecentLinks},
	}

	for _, h := range handlers {
		if err := reg.Register(h.channel, h.handler); err != nil {
			return err
		}
	}
	return nil
}
