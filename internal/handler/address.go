package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/address"
)

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.Addresses.List(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range addrs {
			encodeAddress(e, &addrs[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	a := &address.Address{UserID: userID(r)}
	if err := decodeAddress(w, r, a); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Addresses.Create(r.Context(), a); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAddress(e, a) })
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.Addresses.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := decodeAddress(w, r, a); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Addresses.Update(r.Context(), a); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAddress(e, a) })
}

func (h *Handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.Addresses.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeAddress overlays the request fields on a.
func decodeAddress(w http.ResponseWriter, r *http.Request, a *address.Address) error {
	return decodeObject(w, r, func(d *jx.Decoder, key string) (err error) {
		var dst *string
		switch key {
		case "full_name":
			dst = &a.FullName
		case "phone":
			dst = &a.Phone
		case "pincode":
			dst = &a.Pincode
		case "city":
			dst = &a.City
		case "state":
			dst = &a.State
		case "locality":
			dst = &a.Locality
		case "address":
			dst = &a.Line
		case "landmark":
			dst = &a.Landmark
		case "alternate_phone":
			dst = &a.AlternatePhone
		case "address_type":
			var t string
			t, err = d.Str()
			a.Type = address.Type(t)
			return err
		case "is_default":
			a.IsDefault, err = d.Bool()
			return err
		default:
			return d.Skip()
		}
		*dst, err = d.Str()
		return err
	})
}

func encodeAddress(e *jx.Encoder, a *address.Address) {
	e.ObjStart()
	strField(e, "id", a.ID)
	strField(e, "full_name", a.FullName)
	strField(e, "phone", a.Phone)
	strField(e, "pincode", a.Pincode)
	strField(e, "city", a.City)
	strField(e, "state", a.State)
	strField(e, "locality", a.Locality)
	strField(e, "address", a.Line)
	strField(e, "landmark", a.Landmark)
	strField(e, "alternate_phone", a.AlternatePhone)
	strField(e, "address_type", string(a.Type))
	e.FieldStart("is_default")
	e.Bool(a.IsDefault)
	strField(e, "formatted", a.Format())
	e.ObjEnd()
}
