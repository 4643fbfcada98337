package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jetsflare/internal/models"
)

const nodeIDLength = 12

// NodeID derives the stable node id from the server address, so the same
// machine re-registering always lands on the same row.
func NodeID(serverIP string) string {
	sum := sha256.Sum256([]byte(serverIP))
	return hex.EncodeToString(sum[:])[:nodeIDLength]
}

// RegisterNodeParams is the node self-registration payload.
type RegisterNodeParams struct {
	ID           string   `json:"id"`
	NodeName     string   `json:"node_name"`
	ServerIP     string   `json:"server_ip"`
	CFDomain     string   `json:"cf_domain"`
	CountryCode  string   `json:"country_code"`
	CountryName  string   `json:"country_name"`
	City         string   `json:"city"`
	ISP          string   `json:"isp"`
	Protocols    []string `json:"protocols"`
	XrayVersion  string   `json:"xray_version"`
	UUID         string   `json:"uuid"`
	VlessLink    string   `json:"vless_link"`
	LinkTemplate string   `json:"vless_link_template"`
	WSPath       string   `json:"ws_path"`
	InstalledAt  string   `json:"installed_at"`
}

// deriveTemplate turns the node's own link into a template by swapping the
// node-reported uuid for the placeholder. When the uuid does not occur in
// the link the template degrades to the literal link and later
// substitution becomes a no-op.
func deriveTemplate(p RegisterNodeParams) string {
	if p.LinkTemplate != "" {
		return p.LinkTemplate
	}
	if p.VlessLink == "" {
		return ""
	}
	if p.UUID == "" {
		return p.VlessLink
	}
	return strings.ReplaceAll(p.VlessLink, p.UUID, models.PlaceholderUUID)
}

// UpsertNode registers or refreshes a node. Re-registration always forces
// the node back online and refreshes metadata and last-seen.
func (db *DB) UpsertNode(ctx context.Context, p RegisterNodeParams) (string, error) {
	nodeID := p.ID
	if nodeID == "" {
		nodeID = NodeID(p.ServerIP)
	}

	if p.NodeName == "" {
		p.NodeName = "Unknown"
	}
	if p.CountryCode == "" {
		p.CountryCode = "XX"
	}
	if p.CountryName == "" {
		p.CountryName = "Unknown"
	}
	if p.WSPath == "" {
		p.WSPath = "/ws"
	}
	if len(p.Protocols) == 0 {
		p.Protocols = []string{"vless-ws-tls"}
	}

	protocols, err := json.Marshal(p.Protocols)
	if err != nil {
		return "", fmt.Errorf("marshal protocols: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.db.ExecContext(ctx,
		`INSERT INTO nodes
            (id, node_name, server_ip, cf_domain, country_code, country_name,
             city, isp, protocols, xray_version, vless_link, vless_link_template,
             ws_path, status, last_seen, installed_at, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'online', ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            node_name = excluded.node_name,
            cf_domain = excluded.cf_domain,
            country_code = excluded.country_code,
            country_name = excluded.country_name,
            city = excluded.city,
            isp = excluded.isp,
            protocols = excluded.protocols,
            xray_version = excluded.xray_version,
            vless_link = excluded.vless_link,
            vless_link_template = excluded.vless_link_template,
            ws_path = excluded.ws_path,
            status = 'online',
            last_seen = excluded.last_seen`,
		nodeID, p.NodeName, p.ServerIP, p.CFDomain, p.CountryCode, p.CountryName,
		p.City, p.ISP, string(protocols), p.XrayVersion, p.VlessLink, deriveTemplate(p),
		p.WSPath, now, p.InstalledAt, now,
	)
	if err != nil {
		return "", fmt.Errorf("upsert node: %w", err)
	}
	return nodeID, nil
}

// Heartbeat refreshes last-seen and keeps the node online.
func (db *DB) Heartbeat(ctx context.Context, nodeID string) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE nodes SET last_seen = ?, status = 'online' WHERE id = ?`,
		time.Now().UTC(), nodeID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const nodeColumns = `id, node_name, server_ip, cf_domain, country_code, country_name,
        city, isp, protocols, xray_version, vless_link, vless_link_template,
        ws_path, status, last_seen, installed_at, created_at`

func scanNode(scan func(dest ...any) error) (*models.Node, error) {
	var n models.Node
	var protocols string
	var lastSeen sql.NullTime
	err := scan(
		&n.ID, &n.NodeName, &n.ServerIP, &n.CFDomain, &n.CountryCode, &n.CountryName,
		&n.City, &n.ISP, &protocols, &n.XrayVersion, &n.VlessLink, &n.LinkTemplate,
		&n.WSPath, &n.Status, &lastSeen, &n.InstalledAt, &n.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		n.LastSeen = lastSeen.Time
	}
	if err := json.Unmarshal([]byte(protocols), &n.Protocols); err != nil {
		n.Protocols = []string{"vless-ws-tls"}
	}
	return &n, nil
}

func (db *DB) GetNode(ctx context.Context, nodeID string) (*models.Node, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, nodeID)
	return scanNode(row.Scan)
}

func (db *DB) ListNodes(ctx context.Context) ([]models.Node, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes ORDER BY country_code, node_name`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// DeleteNode removes the node together with its traffic log rows.
func (db *DB) DeleteNode(ctx context.Context, nodeID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM traffic_logs WHERE node_id = ?`, nodeID); err != nil {
			return fmt.Errorf("delete node traffic: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, nodeID)
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
