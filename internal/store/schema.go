package store

// schema contains the SQL statements to create the critdb snapshot schema.
const schema = `
-- Packages table: one row per critical package, keyed by the upstream ID
CREATE TABLE IF NOT EXISTS packages (
    id                          INTEGER PRIMARY KEY,
    ecosystem                   TEXT NOT NULL,
    name                        TEXT NOT NULL,
    purl                        TEXT,
    namespace                   TEXT,
    description                 TEXT,
    homepage                    TEXT,
    repository_url              TEXT,
    licenses                    TEXT,
    normalized_licenses         TEXT,
    latest_release_number       TEXT,
    versions_count              INTEGER,
    downloads                   INTEGER,
    downloads_period            TEXT,
    dependent_packages_count    INTEGER,
    dependent_repos_count       INTEGER,
    first_release_published_at  TEXT,
    latest_release_published_at TEXT,
    last_synced_at              TEXT,
    keywords                    TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_packages_ecosystem_name ON packages(ecosystem, name);
CREATE INDEX IF NOT EXISTS idx_packages_purl ON packages(purl);
CREATE INDEX IF NOT EXISTS idx_packages_licenses ON packages(licenses);
CREATE INDEX IF NOT EXISTS idx_packages_ecosystem ON packages(ecosystem);

-- Versions table: numbers are opaque strings, deduplicated per package
CREATE TABLE IF NOT EXISTS versions (
    package_id INTEGER NOT NULL,
    number     TEXT NOT NULL,
    PRIMARY KEY (package_id, number),
    FOREIGN KEY (package_id) REFERENCES packages(id) ON DELETE CASCADE
);

-- Advisories table: (package_id, uuid) correlates with the upstream feed
CREATE TABLE IF NOT EXISTS advisories (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    package_id   INTEGER NOT NULL,
    uuid         TEXT NOT NULL,
    url          TEXT,
    title        TEXT,
    description  TEXT,
    severity     TEXT,
    published_at TEXT,
    cvss_score   REAL,
    FOREIGN KEY (package_id) REFERENCES packages(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_advisories_package_uuid ON advisories(package_id, uuid);
CREATE INDEX IF NOT EXISTS idx_advisories_severity ON advisories(severity);
CREATE INDEX IF NOT EXISTS idx_advisories_uuid ON advisories(uuid);

-- Repo metadata: one-to-one with packages, absent when no repository is known
CREATE TABLE IF NOT EXISTS repo_metadata (
    package_id  INTEGER PRIMARY KEY,
    owner       TEXT,
    name        TEXT,
    full_name   TEXT,
    host        TEXT,
    language    TEXT,
    stars       INTEGER,
    forks       INTEGER,
    open_issues INTEGER,
    archived    INTEGER,
    fork        INTEGER,
    FOREIGN KEY (package_id) REFERENCES packages(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_repo_metadata_full_name ON repo_metadata(full_name);
CREATE INDEX IF NOT EXISTS idx_repo_metadata_owner ON repo_metadata(owner);

-- Build info: singleton summary of the last successful build
CREATE TABLE IF NOT EXISTS build_info (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    built_at       TEXT NOT NULL,
    package_count  INTEGER NOT NULL,
    version_count  INTEGER NOT NULL,
    advisory_count INTEGER NOT NULL
);

-- Full-text index over packages, kept in sync by the triggers below.
-- Pipeline code never writes packages_fts directly.
CREATE VIRTUAL TABLE IF NOT EXISTS packages_fts USING fts5(
    ecosystem,
    name,
    description,
    keywords,
    content='packages',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS packages_ai AFTER INSERT ON packages BEGIN
    INSERT INTO packages_fts(rowid, ecosystem, name, description, keywords)
    VALUES (new.id, new.ecosystem, new.name, new.description, new.keywords);
END;
CREATE TRIGGER IF NOT EXISTS packages_ad AFTER DELETE ON packages BEGIN
    INSERT INTO packages_fts(packages_fts, rowid, ecosystem, name, description, keywords)
    VALUES ('delete', old.id, old.ecosystem, old.name, old.description, old.keywords);
END;
CREATE TRIGGER IF NOT EXISTS packages_au AFTER UPDATE ON packages BEGIN
    INSERT INTO packages_fts(packages_fts, rowid, ecosystem, name, description, keywords)
    VALUES ('delete', old.id, old.ecosystem, old.name, old.description, old.keywords);
    INSERT INTO packages_fts(rowid, ecosystem, name, description, keywords)
    VALUES (new.id, new.ecosystem, new.name, new.description, new.keywords);
END;
`
