package pedestal

import "math"

// histogram is a fixed-range, fixed-bin-count accumulator, standing in
// for the original's reference ROOT TH1D (no histogramming library
// appears anywhere in the example pack, so this is a stdlib-only
// fallback — see DESIGN.md). Mean/RMS are tracked from the raw filled
// values (mirroring TH1::Fill's running sumw/sumwx/sumwx2 moments),
// not reconstructed from binned data, so they agree with what a ROOT
// histogram's GetMean/GetRMS would report.
type histogram struct {
	xmin, xmax float64
	nbin       int
	width      float64
	counts     []float64

	n          int
	sum, sumsq float64
}

func newHistogram(nbin int, xmin, xmax float64) *histogram {
	return &histogram{
		xmin:   xmin,
		xmax:   xmax,
		nbin:   nbin,
		width:  (xmax - xmin) / float64(nbin),
		counts: make([]float64, nbin),
	}
}

func (h *histogram) fill(v float64) {
	if v < h.xmin || v > h.xmax {
		return
	}
	idx := int((v - h.xmin) / h.width)
	if idx < 0 {
		idx = 0
	}
	if idx >= h.nbin {
		idx = h.nbin - 1
	}
	h.counts[idx]++
	h.n++
	h.sum += v
	h.sumsq += v * v
}

func (h *histogram) entries() int { return h.n }

func (h *histogram) binCenter(i int) float64 { return h.xmin + (float64(i)+0.5)*h.width }

// maxBin returns the index of the first bin attaining the maximum
// count, matching TH1::GetMaximumBin's first-occurrence tie-break.
func (h *histogram) maxBin() int {
	best := 0
	for i := 1; i < len(h.counts); i++ {
		if h.counts[i] > h.counts[best] {
			best = i
		}
	}
	return best
}

func (h *histogram) rms() float64 {
	if h.n == 0 {
		return 0
	}
	mean := h.sum / float64(h.n)
	variance := h.sumsq/float64(h.n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// windowedMoments computes the count-weighted mean and standard
// deviation of every bin whose center falls in [lo, hi]. The two-pass
// Gaussian fit below calls this where the original calls TH1::Fit
// with a "gaus" TF1 restricted to the same range: a method-of-moments
// estimate over the windowed bin contents, since no curve-fitting
// library appears anywhere in the example pack (see DESIGN.md).
func (h *histogram) windowedMoments(lo, hi float64) (mean, sigma float64, ok bool) {
	var sumW, sumWx, sumWxx float64
	for i := 0; i < h.nbin; i++ {
		c := h.binCenter(i)
		if c < lo || c > hi {
			continue
		}
		w := h.counts[i]
		sumW += w
		sumWx += w * c
		sumWxx += w * c * c
	}
	if sumW <= 0 {
		return 0, 0, false
	}
	mean = sumWx / sumW
	variance := sumWxx/sumW - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance), true
}

type fitResult struct {
	Mean, Sigma float64
	Status      int
	Ok          bool
}

// fitPedestalGaussian is the two-pass pedestal fit: a first window
// around the modal bin sized from the clamped RMS, then a second,
// narrower window around the first pass's own mean/sigma.
func fitPedestalGaussian(h *histogram, minEntries int, nsigma1, nsigma2, sigmaMin, sigmaMax float64) fitResult {
	r := fitResult{Mean: -1, Sigma: -1, Status: 999, Ok: false}
	if h == nil || h.entries() < minEntries {
		return r
	}

	mu0 := h.binCenter(h.maxBin())
	rms := h.rms()
	if rms <= 0 {
		rms = 10.0
	}
	sig0 := clamp(rms, sigmaMin, sigmaMax)

	x1 := math.Max(mu0-nsigma1*sig0, h.xmin)
	x2 := math.Min(mu0+nsigma1*sig0, h.xmax)
	if x2 <= x1 {
		return r
	}

	mu1, sg1raw, ok1 := h.windowedMoments(x1, x2)
	if !ok1 {
		mu1, sg1raw = mu0, sig0
	}
	sg1 := clamp(math.Abs(sg1raw), sigmaMin, sigmaMax)

	y1 := math.Max(mu1-nsigma2*sg1, h.xmin)
	y2 := math.Min(mu1+nsigma2*sg1, h.xmax)
	if y2 <= y1 {
		return r
	}

	mean, sigmaRaw, ok2 := h.windowedMoments(y1, y2)
	if !ok2 {
		r.Mean, r.Sigma, r.Status = mu1, sg1, 1
		return r
	}

	r.Mean = mean
	r.Sigma = clamp(math.Abs(sigmaRaw), sigmaMin, sigmaMax)
	r.Status = 0
	r.Ok = true
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
