// Package domain models USGS earthquake summary feed data and the display
// encodings derived from it.
//
// # Data Source
//
// Events come from the USGS Earthquake Hazards Program summary feeds at
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/. One GeoJSON
// FeatureCollection is published per lookback window and regenerated upstream
// every minute:
//
//	all_hour.geojson   past hour
//	all_day.geojson    past day
//	all_week.geojson   past seven days
//	all_month.geojson  past thirty days (tens of thousands of features)
//
// # USGS Data Conventions
//
// Geometry:
//
//	Point coordinates are [longitude, latitude, depth] with depth in km.
//	Depth may be negative for events above the reference ellipsoid.
//
// Properties used here:
//
//	place  human readable region, e.g. "10 km SSW of Idyllwild, CA".
//	       May be null for some automatic solutions.
//	mag    magnitude on the network's preferred scale. Small events are
//	       sometimes reported with negative values (e.g. -0.4 ml); these are
//	       valid measurements and are preserved.
//	time   origin time in epoch milliseconds (UTC).
//
// A feature with no point geometry, a null mag or a null time cannot be
// placed on a map and is skipped by [Normalize] with a [RecordError].
//
// # Visual Encoding
//
// Marker color is banded on magnitude with inclusive lower bounds:
//
//	>= 6      red
//	[4, 6)    orange
//	< 4       green (includes negative magnitudes)
//
// Marker size is magnitude * 5 display units, floored at [MinMarkerSize].
package domain
