package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCapacityMW(t *testing.T) {
	require.Nil(t, CapacityMW("keine Leistungsangabe"))

	v := CapacityMW("Speicher mit 10 MW Leistung")
	require.NotNil(t, v)
	require.InDelta(t, 10.0, *v, 1e-9)

	// German decimal comma, largest figure wins.
	v = CapacityMW("erste Ausbaustufe 5 MW, Endausbau 12,5 MW")
	require.NotNil(t, v)
	require.InDelta(t, 12.5, *v, 1e-9)

	// kW figures are converted.
	v = CapacityMW("Anschlussleistung 5000 kW")
	require.NotNil(t, v)
	require.InDelta(t, 5.0, *v, 1e-9)

	v = CapacityMW("2 MW geplant, spaeter 3000 kW zusaetzlich")
	require.NotNil(t, v)
	require.InDelta(t, 3.0, *v, 1e-9)
}

func TestCapacityMWH(t *testing.T) {
	v := CapacityMWH("Kapazitaet von 20 MWh")
	require.NotNil(t, v)
	require.InDelta(t, 20.0, *v, 1e-9)

	v = CapacityMWH("Kapazitaet von 8000 kWh")
	require.NotNil(t, v)
	require.InDelta(t, 8.0, *v, 1e-9)

	require.Nil(t, CapacityMWH("keine Angabe"))
}

func TestAreaHA(t *testing.T) {
	v := AreaHA("Plangebiet von 3,5 ha")
	require.NotNil(t, v)
	require.InDelta(t, 3.5, *v, 1e-9)

	v = AreaHA("eine Flaeche von 5000 qm")
	require.NotNil(t, v)
	require.InDelta(t, 0.5, *v, 1e-9)

	// Mixed units, largest after conversion wins.
	v = AreaHA("Teilflaeche 5000 qm im Plangebiet von 2 ha")
	require.NotNil(t, v)
	require.InDelta(t, 2.0, *v, 1e-9)

	require.Nil(t, AreaHA("keine Flaechenangabe"))
}

func TestDecisionDate(t *testing.T) {
	d := DecisionDate("Der Aufstellungsbeschluss vom 15.03.2024 wurde gefasst.")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *d)

	// The date near a decision keyword wins over an earlier incidental one.
	filler := strings.Repeat("weitere hinweise folgen ", 15)
	d = DecisionDate("Veröffentlicht am 01.01.2024. " + filler + " Satzungsbeschluss vom 10.06.2024.")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), *d)

	// Two-digit years.
	d = DecisionDate("beschlossen am 05.04.24")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC), *d)

	// Dates outside the plausible year range are ignored.
	require.Nil(t, DecisionDate("Gegruendet am 01.01.1999."))

	// Impossible calendar dates are rejected.
	require.Nil(t, DecisionDate("Sitzung am 31.02.2024"))

	require.Nil(t, DecisionDate("kein Datum"))
}

func TestCompanies(t *testing.T) {
	text := "vorhabentraegerin ist die Energiepark Nord GmbH, vertreten durch die Sonnenspeicher AG."
	companies := Companies(text)
	require.Contains(t, companies, "Energiepark Nord GmbH")
	require.Contains(t, companies, "Sonnenspeicher AG")

	// Duplicates collapse.
	companies = Companies("die Energiepark Nord GmbH und nochmals die Energiepark Nord GmbH")
	require.Len(t, companies, 1)

	require.Empty(t, Companies("keine Firma genannt"))
}

func TestDeveloper(t *testing.T) {
	require.Equal(t, "", Developer("niemand"))
	text := "beantragt durch die Alpha GmbH, die Beta AG, die Gamma KG und die Delta UG."
	dev := Developer(text)
	require.Equal(t, 3, len(strings.Split(dev, "; ")))
}

func TestLocation(t *testing.T) {
	loc := Location("Das Vorhaben liegt in der Gemarkung Schwedt, Flur 3, Flurstück 12.")
	require.Contains(t, loc, "Gemarkung: schwedt")
	require.Contains(t, loc, "Flur: 3")
	require.Contains(t, loc, "Flurstück: 12")

	require.Equal(t, "", Location("keine Ortsangabe"))
}
