package api

import (
	"github.com/terra-clan/template-marketplace/internal/models"
)

// ChannelDisplay is how a channel is rendered on cards and filter tabs
type ChannelDisplay struct {
	Label    string `json:"label"`
	TabLabel string `json:"tabLabel"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
}

var channelDisplay = map[models.Channel]ChannelDisplay{
	models.ChannelEmail:        {Label: "Email", TabLabel: "Email", Icon: "mail", Color: "bg-blue-100 text-blue-700"},
	models.ChannelWhatsApp:     {Label: "WhatsApp", TabLabel: "WhatsApp", Icon: "message-circle", Color: "bg-green-100 text-green-700"},
	models.ChannelVishing:      {Label: "Vishing", TabLabel: "Vishing", Icon: "phone", Color: "bg-orange-100 text-orange-700"},
	models.ChannelSMS:          {Label: "SMS", TabLabel: "SMS", Icon: "smartphone", Color: "bg-purple-100 text-purple-700"},
	models.ChannelQRCode:       {Label: "QR Code", TabLabel: "QR Code", Icon: "qr-code", Color: "bg-pink-100 text-pink-700"},
	models.ChannelMultiChannel: {Label: "Multi", TabLabel: "Multi-Channel", Icon: "layers", Color: "bg-gray-200 text-gray-700"},
}

var allChannelsDisplay = ChannelDisplay{Label: "All", TabLabel: "All", Icon: "layout-grid", Color: "bg-gray-100 text-gray-700"}

var sourceLabels = map[models.Source]string{
	models.SourceCurated:   "SoSafe Curated",
	models.SourceCommunity: "Community",
}

// displayFor returns the descriptor for c. Unknown channels fall back to
// the raw key so a new channel never breaks rendering.
func displayFor(c models.Channel) ChannelDisplay {
	if d, ok := channelDisplay[c]; ok {
		return d
	}
	return ChannelDisplay{Label: string(c), TabLabel: string(c), Icon: "help-circle", Color: "bg-gray-100 text-gray-700"}
}

// templateView is a record as served to clients
type templateView struct {
	*models.Record
	Display     ChannelDisplay `json:"display"`
	SourceLabel string         `json:"sourceLabel"`
}

func newTemplateView(r *models.Record) templateView {
	return templateView{
		Record:      r,
		Display:     displayFor(r.Channel),
		SourceLabel: sourceLabels[r.Source],
	}
}

// channelTab is one entry of the channel filter bar
type channelTab struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	ChannelDisplay
}
