package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rickb777/date"
)

func parseRoutes(r io.Reader) ([]Route, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, "route_id"); err != nil {
		return nil, err
	}

	var routes []Route
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		routeType, _ := strconv.Atoi(getField(record, idx, "route_type"))

		routes = append(routes, Route{
			RouteID:        getField(record, idx, "route_id"),
			AgencyID:       getField(record, idx, "agency_id"),
			RouteShortName: getField(record, idx, "route_short_name"),
			RouteLongName:  getField(record, idx, "route_long_name"),
			RouteDesc:      getField(record, idx, "route_desc"),
			RouteType:      routeType,
			RouteColor:     getField(record, idx, "route_color"),
			RouteTextColor: getField(record, idx, "route_text_color"),
		})
	}

	return routes, nil
}

func parseTrips(r io.Reader) ([]Trip, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, "route_id", "service_id", "shape_id"); err != nil {
		return nil, err
	}

	var trips []Trip
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		directionID, _ := strconv.Atoi(getField(record, idx, "direction_id"))

		trips = append(trips, Trip{
			RouteID:      getField(record, idx, "route_id"),
			ServiceID:    getField(record, idx, "service_id"),
			TripID:       getField(record, idx, "trip_id"),
			TripHeadsign: getField(record, idx, "trip_headsign"),
			DirectionID:  directionID,
			ShapeID:      getField(record, idx, "shape_id"),
		})
	}

	return trips, nil
}

func parseShapes(r io.Reader) (map[string][]ShapePoint, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, "shape_id", "shape_pt_lat", "shape_pt_lon", "shape_pt_sequence"); err != nil {
		return nil, err
	}

	shapes := make(map[string][]ShapePoint)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		shapeID := getField(record, idx, "shape_id")
		lat, _ := strconv.ParseFloat(getField(record, idx, "shape_pt_lat"), 64)
		lon, _ := strconv.ParseFloat(getField(record, idx, "shape_pt_lon"), 64)
		seq, _ := strconv.Atoi(getField(record, idx, "shape_pt_sequence"))
		dist, _ := strconv.ParseFloat(getField(record, idx, "shape_dist_traveled"), 64)

		shapes[shapeID] = append(shapes[shapeID], ShapePoint{
			ShapeID:           shapeID,
			ShapePtLat:        lat,
			ShapePtLon:        lon,
			ShapePtSequence:   seq,
			ShapeDistTraveled: dist,
			ShapeExternalRef:  getField(record, idx, "shape_bkk_ref"),
		})
	}

	// Sort each shape by sequence
	for shapeID := range shapes {
		sort.Slice(shapes[shapeID], func(i, j int) bool {
			return shapes[shapeID][i].ShapePtSequence < shapes[shapeID][j].ShapePtSequence
		})
	}

	return shapes, nil
}

var weekdayColumns = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func parseCalendar(r io.Reader) ([]Calendar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, "service_id", "start_date", "end_date"); err != nil {
		return nil, err
	}

	var rules []Calendar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		start, err := date.Parse(DateLayout, getField(record, idx, "start_date"))
		if err != nil {
			continue
		}
		end, err := date.Parse(DateLayout, getField(record, idx, "end_date"))
		if err != nil {
			continue
		}

		rule := Calendar{
			ServiceID: getField(record, idx, "service_id"),
			StartDate: start,
			EndDate:   end,
		}
		for i, col := range weekdayColumns {
			rule.Weekdays[i] = getField(record, idx, col) == "1"
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseCalendarDates(r io.Reader) ([]CalendarDate, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, "service_id", "date", "exception_type"); err != nil {
		return nil, err
	}

	var exceptions []CalendarDate
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		d, err := date.Parse(DateLayout, getField(record, idx, "date"))
		if err != nil {
			continue
		}
		excType, _ := strconv.Atoi(getField(record, idx, "exception_type"))

		exceptions = append(exceptions, CalendarDate{
			ServiceID:     getField(record, idx, "service_id"),
			Date:          d,
			ExceptionType: excType,
		})
	}

	return exceptions, nil
}

func requireColumns(idx map[string]int, columns ...string) error {
	for _, col := range columns {
		if _, ok := idx[col]; !ok {
			return fmt.Errorf("%w: %s", ErrSchemaMismatch, col)
		}
	}
	return nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
