package models

import (
	"strings"
	"time"
)

const (
	NodeOnline  = "online"
	NodeOffline = "offline"
)

// Placeholders recognized inside a node link template.
const (
	PlaceholderUUID     = "{uuid}"
	PlaceholderNodeName = "{node_name}"
)

type Node struct {
	ID           string    `json:"id"`
	NodeName     string    `json:"node_name"`
	ServerIP     string    `json:"server_ip"`
	CFDomain     string    `json:"cf_domain"`
	CountryCode  string    `json:"country_code"`
	CountryName  string    `json:"country_name"`
	City         string    `json:"city"`
	ISP          string    `json:"isp"`
	Protocols    []string  `json:"protocols"`
	XrayVersion  string    `json:"xray_version"`
	VlessLink    string    `json:"vless_link"`
	LinkTemplate string    `json:"vless_link_template"`
	WSPath       string    `json:"ws_path"`
	Status       string    `json:"status"` // online, offline
	LastSeen     time.Time `json:"last_seen"`
	InstalledAt  string    `json:"installed_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// RenderLink substitutes the user uuid and the node name into the template.
// A template without placeholders comes back unchanged.
func (n *Node) RenderLink(userUUID string) string {
	link := strings.ReplaceAll(n.LinkTemplate, PlaceholderUUID, userUUID)
	return strings.ReplaceAll(link, PlaceholderNodeName, n.NodeName)
}

// AccessLink is one ready-to-use connection profile for a user.
type AccessLink struct {
	NodeName    string `json:"node_name"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Link        string `json:"link"`
}
