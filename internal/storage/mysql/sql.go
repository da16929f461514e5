package mysql

// Points are bound as WKT in (lng lat) order; SRID 4326 defaults to lat-long
// in MySQL 8, so every constructor spells out the axis order.
const pointFromWKT = `ST_GeomFromText(?, 4326, 'axis-order=long-lat')`

// Same sphere as the query engine's haversine (orb.EarthRadius).
const earthRadiusM = "6378137"

const shopColumns = `
  id,
  name,
  address,
  area,
  ST_Longitude(location),
  ST_Latitude(location),
  rating,
  description,
  wifi,
  outdoor_seating,
  created_at,
  updated_at`

// LAST_INSERT_ID(id) makes LastInsertId return the existing row on a duplicate;
// RowsAffected is 1 for a new row and 0 for an untouched duplicate.
const insertShopSQL = `
INSERT INTO coffee_shops
  (name, address, area, location, rating, description, wifi, outdoor_seating)
VALUES
  (?, ?, ?, ` + pointFromWKT + `, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id = LAST_INSERT_ID(id)
`

const getShopSQL = `SELECT` + shopColumns + `
FROM coffee_shops
WHERE id = ?
`

// Case-folded, then byte order: the same order the memory store produces.
const listShopsSQL = `SELECT` + shopColumns + `
FROM coffee_shops
ORDER BY LOWER(name) COLLATE utf8mb4_bin, id
`

// -----------------------------------------------------------------------------
// SPATIAL QUERIES
// -----------------------------------------------------------------------------

const nearestShopsSQL = `SELECT` + shopColumns + `
FROM coffee_shops
ORDER BY ST_Distance_Sphere(location, ` + pointFromWKT + `, ` + earthRadiusM + `), id
LIMIT ?
`

const shopsWithinSQL = `SELECT` + shopColumns + `
FROM coffee_shops
WHERE ST_Distance_Sphere(location, ` + pointFromWKT + `, ` + earthRadiusM + `) <= ?
ORDER BY ST_Distance_Sphere(location, ` + pointFromWKT + `, ` + earthRadiusM + `), id
`

// -----------------------------------------------------------------------------
// SUBMISSIONS
// -----------------------------------------------------------------------------

const insertSubmissionSQL = `
INSERT INTO coffee_shop_submissions
  (ref, name, address, area, location, rating, wifi, outdoor_seating, notes,
   submitted_by_name, submitted_by_email, status, submitted_at)
VALUES
  (?, ?, ?, ?, ` + pointFromWKT + `, ?, ?, ?, ?, ?, ?, ?, ?)
`

const listPendingSubmissionsSQL = `
SELECT
  id,
  ref,
  name,
  address,
  area,
  ST_Longitude(location),
  ST_Latitude(location),
  rating,
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
