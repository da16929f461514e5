package postgis

// Points are bound as (lng, lat) and distances use the geography sphere.
const pointArg = `ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography`

const shopColumns = `
  id,
  name,
  address,
  area,
  ST_X(location),
  ST_Y(location),
  rating::float8,
  description,
  wifi,
  outdoor_seating,
  created_at,
  updated_at`

const insertShopSQL = `
INSERT INTO coffee_shops
  (name, address, area, location, rating, description, wifi, outdoor_seating)
VALUES
  ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326), $6, $7, $8, $9)
ON CONFLICT (name, address) DO NOTHING
RETURNING id
`

const existingShopIDSQL = `SELECT id FROM coffee_shops WHERE name = $1 AND address = $2`

const getShopSQL = `SELECT` + shopColumns + `
FROM coffee_shops
WHERE id = $1
`

// Case-folded, then byte order: the same order the memory store produces.
const listShopsSQL = `SELECT` + shopColumns + `
FROM coffee_shops
ORDER BY lower(name) COLLATE "C", id
`

// -----------------------------------------------------------------------------
// SPATIAL QUERIES
// -----------------------------------------------------------------------------

const nearestShopsSQL = `SELECT` + shopColumns + `
FROM coffee_shops
ORDER BY ST_Distance(location::geography, ` + pointArg + `, false), id
LIMIT $3
`

const shopsWithinSQL = `SELECT` + shopColumns + `
FROM coffee_shops
WHERE ST_DWithin(location::geography, ` + pointArg + `, $3, false)
ORDER BY ST_Distance(location::geography, ` + pointArg + `, false), id
`

// -----------------------------------------------------------------------------
// SUBMISSIONS
// -----------------------------------------------------------------------------

const insertSubmissionSQL = `
INSERT INTO coffee_shop_submissions
  (ref, name, address, area, location, rating, wifi, outdoor_seating, notes,
   submitted_by_name, submitted_by_email, status, submitted_at)
VALUES
  ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326), $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id
`

const listPendingSubmissionsSQL = `
SELECT
  id,
  ref::text,
  name,
  address,
  area,
  ST_X(location),
  ST_Y(location),
  rating::float8,
  wifi,
  outdoor_seating,
  notes,
  submitted_by_name,
  submitted_by_email,
  status,
  submitted_at
FROM coffee_shop_submissions
WHERE status = 'pending'
ORDER BY submitted_at DESC, id DESC
`
