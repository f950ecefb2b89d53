package fastview

import (
	"context"
	"errors"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// DefaultBatchRate is how often a page flushes the merged updates of its views.
const DefaultBatchRate = time.Millisecond * 20

var (
	// ErrNoViews is returned by Build when no view was added.
	ErrNoViews error = errors.New("no views to build: WithView must be called")
	// ErrNoModel is returned by Build when WithModel was not called.
	ErrNoModel error = errors.New("no model specified: WithModel must be called")
	// ErrBatchRate is returned by Build for a non-positive batch rate.
	ErrBatchRate error = errors.New("batch rate must be positive")
	// ErrNilView is returned by Build when a ViewBuilderFunc returns no view.
	ErrNilView error = errors.New("view builder returned a nil view")
)

// ViewBuilderFunc builds a view over a view-model channel. Its channels must close when done does.
type ViewBuilderFunc[ViewModel any] func(done <-chan struct{}, models <-chan ViewModel) ViewComponent

// Page is a built set of views and the single stream of their ele-updates.
type Page struct {
	Views   []ViewComponent
	updates <-chan []EleUpdate
}

// Updates returns the views' ele-updates, merged and batched so that each
// batch holds at most one update per element.
func (page *Page) Updates() <-chan []EleUpdate {
	return page.updates
}

// ViewBuilder wires a data-model source to a page of views. Each data-model is
// converted once and every view receives the result.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source    <-chan DataModel
	convert   func(DataModel) ViewModel
	builders  []ViewBuilderFunc[ViewModel]
	done      <-chan struct{}
	batchRate time.Duration
}

func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{
		batchRate: DefaultBatchRate,
	}
}

func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	source <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source, vb.convert = source, convert
	return vb
}

// WithView appends a view; Page.Views keeps the order of the calls.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	builder ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.builders = append(vb.builders, builder)
	return vb
}

// WithContext tears down the page's channels when ctx is cancelled.
// Without it they live until the source closes.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

func (vb *ViewBuilder[DataModel, ViewModel]) WithBatchRate(
	rate time.Duration,
) *ViewBuilder[DataModel, ViewModel] {
	vb.batchRate = rate
	return vb
}

// Build starts the page's pipeline: source, convert, broadcast to views,
// merge the views' updates, batch.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() (*Page, error) {
	switch {
	case len(vb.builders) == 0:
		return nil, ErrNoViews
	case vb.source == nil || vb.convert == nil:
		return nil, ErrNoModel
	case vb.batchRate <= 0:
		return nil, ErrBatchRate
	}

	models := channerics.Broadcast(
		vb.done,
		channerics.Convert(vb.done, vb.source, vb.convert),
		len(vb.builders))

	page := &Page{Views: make([]ViewComponent, 0, len(vb.builders))}
	inputs := make([]<-chan []EleUpdate, 0, len(vb.builders))
	for i, build := range vb.builders {
		view := build(vb.done, models[i])
		if view == nil {
			return nil, ErrNilView
		}
		page.Views = append(page.Views, view)
		inputs = append(inputs, view.Updates())
	}

	page.updates = batch(vb.done, channerics.Merge(vb.done, inputs...), vb.batchRate)
	return page, nil
}

// batch collects updates and flushes them every @rate, keeping only the latest
// update per ele-id. Whatever is pending when the source closes is flushed too.
func batch(
	done <-chan struct{},
	source <-chan []EleUpdate,
	rate time.Duration,
) <-chan []EleUpdate {
	output := make(chan []EleUpdate)

	go func() {
		defer close(output)

		pending := map[string]EleUpdate{}
		// Element order within a batch is stable: first-seen order.
		var order []string
		flush := func() bool {
			if len(order) == 0 {
				return true
			}
			out := make([]EleUpdate, 0, len(order))
			for _, id := range order {
				out = append(out, pending[id])
			}
			select {
			case output <- out:
				pending, order = map[string]EleUpdate{}, nil
				return true
			case <-done:
				return false
			}
		}

		// Stopped when this loop exits, even if done is nil.
		stopTicker := make(chan struct{})
		defer close(stopTicker)
		ticker := channerics.NewTicker(stopTicker, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					flush()
					return
				}
				for _, update := range updates {
					if _, seen := pending[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					pending[update.EleId] = update
				}
			case <-ticker:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}
