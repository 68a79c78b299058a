// Package domain models hourly weather observations collected from two
// heterogeneous providers and normalized into a single metric schema.
//
// # Data Sources
//
// Weather Underground personal weather station exports arrive as one
// semicolon-delimited, ISO-8859-1 encoded text file per station per calendar
// day. The header row carries padded column names ("Temperature ", " Time")
// and the third physical line is a metadata row that is discarded on read.
// Values embed their Imperial unit suffix and may use a comma as the decimal
// separator:
//
//	Time;Temperature;Dew Point;Humidity;Wind;Speed;Gust;Pressure;Precip. Rate.;Precip. Accum.;UV;Solar
//	12:04 AM;56,8 °F;52,1 °F;84 %;WSW;2,2 mph;3,1 mph;29,94 in;0,00 in;0,00 in;0;0 w/m²
//
// The date is not part of a row; it comes from the file's position in the
// sources manifest and is prefixed to the row's local time-of-day.
//
// Infoclimat exports arrive as a single JSON document whose "hourly" key maps
// a station identifier to a list of hourly entries. Entries are already
// metric except wind, which is reported in km/h:
//
//	{"hourly": {"07015": [{"id_station": "07015", "dh_utc": "2024-10-01 00:00:00",
//	  "temperature": "13.1", "pression": "1014.2", "humidite": "89",
//	  "vent_moyen": "14.4", "pluie_1h": "0.2", "pluie_3h": "0.6"}]}}
//
// # Unit Conversions
//
//	Temperature: °C = (°F − 32) × 5/9
//	Pressure:    hPa = inHg × 33.8638
//	Wind speed:  m/s = mph × 0.44704 = km/h ÷ 3.6
//	Rain:        mm = in × 25.4
//
// # Missing Values
//
// A value that is empty, unparsable, or non-finite becomes an absent
// [Reading]. Absent is distinct from zero and is persisted as null. The
// Infoclimat convention differs for wind and rain: a missing value there
// means "nothing measured" and is stored as zero.
//
// # Keys
//
// (station_id, timestamp) identifies a reading. Uniqueness is reported by the
// integrity passes but not enforced; duplicate pairs are loaded as separate
// documents.
package domain
