package store

// schema is executed once, when a partition file is first created. Partitions
// are never altered afterwards; column order is fixed.
const schema = `
CREATE TABLE IF NOT EXISTS wxdata (
    ID           INTEGER PRIMARY KEY AUTOINCREMENT,
    STATIONID    TEXT,
    DATE         TEXT,
    TIME         TEXT,
    UTC          REAL,
    TEMP         REAL,
    DEWPT        REAL,
    RHUM         REAL,
    BARO         REAL,
    WINDDIR      REAL,
    WINDVEL      REAL,
    WGUSTDIR     REAL,
    WGUSTVEL     REAL,
    PRECIP       REAL,
    PRECIPDAY    REAL,
    UVIDX        REAL,
    SOLAR        REAL,
    INTEMP       REAL,
    INRHUM       REAL,
    SOILTEMP     REAL,
    SOILMOIST    REAL,
    LEAFWET      REAL,
    WEATHER      TEXT,
    CLOUDS       TEXT,
    VISNM        REAL,
    PRECIPWEEK   REAL,
    PRECIPMON    REAL,
    PRECIPYEAR   REAL,
    ABSBARO      REAL,
    FIRMWARE_REV TEXT
);
`

const insertReading = `
INSERT INTO wxdata
(STATIONID, DATE, TIME, UTC, TEMP, DEWPT, RHUM, BARO,
 WINDDIR, WINDVEL, WGUSTDIR, WGUSTVEL, PRECIP, PRECIPDAY, UVIDX, SOLAR,
 INTEMP, INRHUM, SOILTEMP, SOILMOIST, LEAFWET, WEATHER, CLOUDS, VISNM,
 PRECIPWEEK, PRECIPMON, PRECIPYEAR, ABSBARO, FIRMWARE_REV)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
