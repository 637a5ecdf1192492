package schemaguard

// Signature matches a drift error to a repairable element. Code is the
// postgres error code ("" matches any); Substring must appear in the error
// message.
type Signature struct {
	Code      string
	Substring string
}

// Repair is one idempotent additive repair. Statements only ever add
// columns, tables or indexes, guarded with IF NOT EXISTS, so running them
// concurrently from many processes is safe.
type Repair struct {
	// Element names the schema element this repairs, e.g.
	// "workspace_shared" or "invitations".
	Element    string
	Signatures []Signature
	Statements []string
}

// DefaultRepairs is the fixed table of known drift the schema evolves
// toward. Each entry mirrors a numbered migration so that a deploy that
// races ahead of its migration self-heals, and the migration still applies
// cleanly afterwards.
func DefaultRepairs() []Repair {
	return []Repair{
		{
			// Mirrors migration 002: workspace sharing flags.
			Element: "workspace_shared",
			Signatures: []Signature{
				{Code: codeUndefinedColumn, Substring: "workspace_shared"},
			},
			Statements: []string{
				`ALTER TABLE projects ADD COLUMN IF NOT EXISTS workspace_shared BOOLEAN NOT NULL DEFAULT FALSE`,
				`ALTER TABLE dashboards ADD COLUMN IF NOT EXISTS workspace_shared BOOLEAN NOT NULL DEFAULT FALSE`,
			},
		},
		{
			// Mirrors migration 002: rotating share tokens.
			Element: "share_token",
			Signatures: []Signature{
				{Code: codeUndefinedColumn, Substring: "share_token"},
			},
			Statements: []string{
				`ALTER TABLE projects ADD COLUMN IF NOT EXISTS share_token TEXT`,
				`ALTER TABLE dashboards ADD COLUMN IF NOT EXISTS share_token TEXT`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_share_token ON projects(share_token) WHERE share_token IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_dashboards_share_token ON dashboards(share_token) WHERE share_token IS NOT NULL`,
			},
		},
		{
			// Mirrors migration 003: invitation-originated member permissions.
			Element: "memberships.permission",
			Signatures: []Signature{
				{Code: codeUndefinedColumn, Substring: "permission"},
			},
			Statements: []string{
				`ALTER TABLE memberships ADD COLUMN IF NOT EXISTS permission TEXT`,
			},
		},
		{
			// Mirrors migration 003: invitations table.
			Element: "invitations",
			Signatures: []Signature{
				{Code: codeUndefinedTable, Substring: `"invitations"`},
			},
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS invitations (
					id UUID PRIMARY KEY,
					token TEXT UNIQUE NOT NULL,
					resource_kind TEXT NOT NULL,
					resource_id UUID NOT NULL,
					target_email TEXT NOT NULL,
					permission TEXT NOT NULL DEFAULT 'view',
					invited_by UUID NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL,
					accepted_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_invitations_resource ON invitations(resource_kind, resource_id)`,
			},
		},
	}
}
