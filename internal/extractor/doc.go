/*
Package extractor reads embedded capture metadata (timestamps, GPS
coordinates, camera identity) from batches of media files.

Two backends implement MetadataExtractor:

  - ExifTool runs one exiftool process per batch, streaming the paths on
    stdin and parsing the JSON it prints. It understands every format
    exiftool does, including HEIC and video containers.
  - Native decodes EXIF in process with github.com/rwcarlsen/goexif. It
    handles JPEG and TIFF-based files only and exists for hosts without
    exiftool installed.

New picks a backend from configuration; "auto" prefers exiftool when it is
on PATH.

A path missing from the returned map simply has no embedded metadata. A
non-nil error means the whole batch produced nothing usable; callers are
expected to log it and carry on with filesystem facts only.
*/
package extractor
