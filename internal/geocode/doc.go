// Package geocode resolves GPS coordinates to a country, city and
// administrative areas.
//
// A Resolver wraps a Backend (normally the offline RGeo polygon lookup),
// validating coordinates, memoizing results per exact coordinate pair and
// normalizing country codes and names. Resolution never fails: anything that
// goes wrong, including a backend panic, yields the zero Location.
package geocode
