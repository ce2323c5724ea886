package service

import (
	"carmarket/backend/internal/model"
	"carmarket/backend/internal/storage"
)

// presentUser fills the derived image URL on the way out.
func presentUser(blobs storage.BlobStore, u *model.User) *model.User {
	if u == nil {
		return nil
	}
	u.ProfileImageURL = nil
	if filledStr(u.ProfileImagePath) {
		url := blobs.URL(*u.ProfileImagePath)
		u.ProfileImageURL = &url
	}
	return u
}

func presentImage(blobs storage.BlobStore, img *model.CarImage) *model.CarImage {
	img.URL = nil
	if filledStr(img.Path) {
		url := blobs.URL(*img.Path)
		img.URL = &url
	}
	return img
}

func presentCar(blobs storage.BlobStore, car *model.Car) *model.Car {
	if car == nil {
		return nil
	}
	for i := range car.Images {
		presentImage(blobs, &car.Images[i])
	}
	if car.Seller != nil {
		presentUser(blobs, car.Seller)
	}
	return car
}

func presentCars(blobs storage.BlobStore, cars []model.Car) []model.Car {
	for i := range cars {
		presentCar(blobs, &cars[i])
	}
	return cars
}
