// ABOUTME: SQLite database schema for the project metadata store
// ABOUTME: Creates all tables and indexes for local storage
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Project metadata extracted from case-study texts
CREATE TABLE IF NOT EXISTS projects (
    name TEXT PRIMARY KEY,
    designer TEXT,
    year INTEGER,
    country TEXT,
    city TEXT,
    function TEXT,
    style TEXT,
    material TEXT,
    area INTEGER,
    item_count INTEGER DEFAULT 0,
    extracted_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_projects_country ON projects(country);
CREATE INDEX IF NOT EXISTS idx_projects_year ON projects(year);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
