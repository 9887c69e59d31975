package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/access"
	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/export"
	"github.com/histrail/railatlas/internal/gis"
	"github.com/histrail/railatlas/internal/rail"
	"github.com/histrail/railatlas/internal/raster"
	"github.com/histrail/railatlas/internal/stats"
)

// surfaceInput pairs one raster file with its classification table.
type surfaceInput struct {
	name       string
	path       string
	classifier *raster.Classifier
}

func (p *Pipeline) surfaceInputs() ([]surfaceInput, error) {
	tri := raster.TRIClassifier()
	wheat := raster.WheatClassifier()
	if p.cfg.Raster.BinsPath != "" {
		tables, err := raster.LoadClassifiers(p.cfg.Raster.BinsPath)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load classification tables")
		}
		if c, ok := tables["tri"]; ok {
			tri = c
		}
		if c, ok := tables["wheat"]; ok {
			wheat = c
		}
	}
	return []surfaceInput{
		{name: "tri", path: p.cfg.Raster.TRIPath, classifier: tri},
		{name: "wheat", path: p.cfg.Raster.WheatPath, classifier: wheat},
	}, nil
}

// runSurfaces clips each configured raster to the dissolved national outline
// and vectorizes it into a classified surface. Rasters are independent, so a
// broken input drops only that surface; the stage fails only when no surface
// could be produced at all.
func (p *Pipeline) runSurfaces(regions *boundary.Set, opts export.Options, res *Result) (string, error) {
	lg := zap.L().With(zap.String("component", "pipeline"))

	outline, err := regions.Dissolve()
	if err != nil {
		return "", eris.Wrap(err, "pipeline: dissolve national outline")
	}

	inputs, err := p.surfaceInputs()
	if err != nil {
		return "", err
	}

	built := 0
	for _, in := range inputs {
		if surfErr := p.buildSurface(in, outline, regions.CRS, opts, res); surfErr != nil {
			lg.Warn("pipeline: surface dropped",
				zap.String("surface", in.name), zap.Error(surfErr))
			continue
		}
		built++
	}
	if built == 0 {
		return "", eris.New("pipeline: no surface produced")
	}
	return fmt.Sprintf("%d of %d surfaces", built, len(inputs)), nil
}

func (p *Pipeline) buildSurface(in surfaceInput, outline geom.Polygonal, outlineCRS string, opts export.Options, res *Result) error {
	f, err := os.Open(in.path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: open raster %q", in.path)
	}
	defer f.Close()

	g, err := raster.ReadASCII(f, p.cfg.Raster.CRS)
	if err != nil {
		return eris.Wrapf(err, "pipeline: read raster %s", in.name)
	}

	clipped, err := raster.Clip(g, outline, outlineCRS)
	if err != nil {
		return eris.Wrapf(err, "pipeline: clip raster %s", in.name)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return eris.Wrap(err, "pipeline: create output dir")
	}
	ncPath := filepath.Join(opts.Dir, in.name+"_clip.nc")
	nc, err := os.Create(ncPath)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", ncPath)
	}
	if err := clipped.WriteNetCDF(nc, "clipped "+in.name+" surface"); err != nil {
		nc.Close()
		return eris.Wrapf(err, "pipeline: write %s", ncPath)
	}
	if err := nc.Close(); err != nil {
		return eris.Wrapf(err, "pipeline: close %s", ncPath)
	}
	res.Artifacts = append(res.Artifacts, ncPath)

	seq, err := raster.Vectorize(clipped, in.classifier, p.cfg.Raster.SimplifyTolerance, gis.WGS84)
	if err != nil {
		return eris.Wrapf(err, "pipeline: vectorize %s", in.name)
	}
	gjPath, err := export.WriteClassFeatures(seq, in.name+"_classes", opts)
	if err != nil {
		return eris.Wrapf(err, "pipeline: export %s classes", in.name)
	}
	res.Artifacts = append(res.Artifacts, gjPath)
	return nil
}

// runNetwork loads the railway shapefile and cuts every line against the
// region and province boundaries.
func (p *Pipeline) runNetwork(ctx context.Context, runID string, regions, provinces *boundary.Set, opts export.Options, res *Result) ([]*rail.Feature, []*rail.Fragment, []*rail.Fragment, string, error) {
	features, err := rail.Load(p.cfg.Rail.ShapefilePath, rail.LoaderOptions{
		Attrs: rail.Attrs{
			Year:  p.cfg.Rail.YearAttr,
			Class: p.cfg.Rail.ClassAttr,
			Gauge: p.cfg.Rail.GaugeAttr,
			Label: p.cfg.Rail.LabelAttr,
		},
		SourceCRS: p.cfg.Rail.SourceCRS,
		MetricCRS: p.cfg.Boundary.MetricCRS,
	})
	if err != nil {
		return nil, nil, nil, "", eris.Wrap(err, "pipeline: load railway shapefile")
	}

	regionFrags, err := cutAll(regions.Units, features)
	if err != nil {
		return nil, nil, nil, "", eris.Wrap(err, "pipeline: region overlay")
	}
	provinceFrags, err := cutAll(provinces.Units, features)
	if err != nil {
		return nil, nil, nil, "", eris.Wrap(err, "pipeline: province overlay")
	}

	if err := p.st.InsertFragments(ctx, runID, provinceFrags); err != nil {
		return nil, nil, nil, "", eris.Wrap(err, "pipeline: store fragments")
	}
	res.Fragments = len(provinceFrags)

	fragPath, err := export.WriteFragments(provinceFrags, p.cfg.Boundary.MetricCRS, "fragments", opts)
	if err != nil {
		return nil, nil, nil, "", eris.Wrap(err, "pipeline: export fragments")
	}
	res.Artifacts = append(res.Artifacts, fragPath)

	detail := fmt.Sprintf("%d lines, %d region fragments, %d province fragments",
		len(features), len(regionFrags), len(provinceFrags))
	return features, regionFrags, provinceFrags, detail, nil
}

func cutAll(units []*boundary.Unit, features []*rail.Feature) ([]*rail.Fragment, error) {
	ov, err := rail.NewOverlay(units, 0)
	if err != nil {
		return nil, err
	}
	var frags []*rail.Fragment
	for _, f := range features {
		frags = append(frags, ov.Cut(f)...)
	}
	return frags, nil
}

// runAggregate builds the distance and network tables, persists them and
// writes the workbook plus the JSON side tables.
func (p *Pipeline) runAggregate(ctx context.Context, runID string, records []access.DistanceRecord, regionFrags, provinceFrags []*rail.Fragment, regions, provinces, municipalities *boundary.Set, opts export.Options, res *Result) (string, error) {
	muniRecs := stats.FilterKind(records, access.KindMunicipality)
	distRegion := stats.MeanDistance(muniRecs, func(r access.DistanceRecord) string { return r.Region })
	distProvince := stats.MeanDistance(muniRecs, func(r access.DistanceRecord) string { return r.Province })

	years := p.cfg.Access.Years()
	netRegion := stats.Network(regionFrags, stats.ByRegion, years, stats.UnitAreas(regions))
	netProvince := stats.Network(provinceFrags, stats.ByProvince, years, stats.UnitAreas(provinces))

	if err := p.st.InsertDistanceSummaries(ctx, runID, "distance_by_region", distRegion); err != nil {
		return "", eris.Wrap(err, "pipeline: store region distances")
	}
	if err := p.st.InsertDistanceSummaries(ctx, runID, "distance_by_province", distProvince); err != nil {
		return "", eris.Wrap(err, "pipeline: store province distances")
	}
	if err := p.st.InsertNetworkSummaries(ctx, runID, "network_by_region", netRegion); err != nil {
		return "", eris.Wrap(err, "pipeline: store region network")
	}
	if err := p.st.InsertNetworkSummaries(ctx, runID, "network_by_province", netProvince); err != nil {
		return "", eris.Wrap(err, "pipeline: store province network")
	}

	wbPath, err := export.WriteStatsWorkbook(export.StatsWorkbook{
		DistanceByRegion:   distRegion,
		DistanceByProvince: distProvince,
		NetworkByRegion:    netRegion,
		NetworkByProvince:  netProvince,
	}, "stats", opts)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: write workbook")
	}
	res.Artifacts = append(res.Artifacts, wbPath)

	structPath, err := export.WriteJSON("structure", export.Structure(municipalities), opts)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: write structure")
	}
	areasPath, err := export.WriteJSON("areas", map[string]map[string]float64{
		"reg":  export.Areas(regions),
		"prov": export.Areas(provinces),
	}, opts)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: write areas")
	}
	capsPath, err := export.WriteJSON("capitals", boundary.Capitals(), opts)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: write capitals")
	}
	res.Artifacts = append(res.Artifacts, structPath, areasPath, capsPath)

	return fmt.Sprintf("%d distance rows, %d network rows",
		len(distRegion)+len(distProvince), len(netRegion)+len(netProvince)), nil
}
